package model

// Media is an uploaded asset. Content is base64 on the wire.
type Media struct {
	MediaID   int       `gorm:"primaryKey;column:media_id" json:"mediaId"`
	MediaType MediaType `gorm:"type:varchar(16);not null" json:"mediaType"`
	Content   []byte    `gorm:"not null" json:"content"`
	BlobType  string    `gorm:"type:varchar(255)" json:"blobType"`
	Analyzed  bool      `gorm:"not null;default:false" json:"analyzed"`
	Result    string    `gorm:"type:text" json:"result,omitempty"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
}

func (Media) TableName() string { return "media" }

// MediaUpload is one multipart POST /media request.
type MediaUpload struct {
	Filename  string
	MediaType MediaType
	BlobType  string
	Content   []byte
}
