package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/team-spoved/spoved/internal/authtoken"
	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/model"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeTickets struct {
	filter   model.TicketFilter
	assigned [2]int
	err      error
}

func (f *fakeTickets) Create(_ context.Context, req model.CreateTicketRequest) (*model.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Ticket{TicketID: 1, CreatedBy: req.CreatedBy, Title: req.Title, Status: model.TicketStatusOpen}, nil
}

func (f *fakeTickets) GetByID(_ context.Context, id int) (*model.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Ticket{TicketID: id}, nil
}

func (f *fakeTickets) List(_ context.Context, flt model.TicketFilter) ([]model.Ticket, error) {
	f.filter = flt
	return []model.Ticket{}, f.err
}

func (f *fakeTickets) Assign(_ context.Context, id, userID int) (*model.Ticket, error) {
	f.assigned = [2]int{id, userID}
	if f.err != nil {
		return nil, f.err
	}
	return &model.Ticket{TicketID: id, AssignedTo: &userID}, nil
}

func (f *fakeTickets) UpdateStatus(_ context.Context, id int, st model.TicketStatus) (*model.Ticket, error) {
	return &model.Ticket{TicketID: id, Status: st}, f.err
}

func (f *fakeTickets) Update(_ context.Context, id int, _ model.UpdateTicketRequest) (*model.Ticket, error) {
	return &model.Ticket{TicketID: id}, f.err
}

func ticketRouter(svc *fakeTickets) *gin.Engine {
	h := NewTicketHandler(svc)
	r := gin.New()
	r.GET("/tickets", h.List)
	r.GET("/tickets/:id", h.Get)
	r.POST("/tickets", h.Create)
	r.PUT("/tickets/:id/assign", h.Assign)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTicketListParsesFilter(t *testing.T) {
	svc := &fakeTickets{}
	w := serve(ticketRouter(svc), httptest.NewRequest(http.MethodGet,
		"/tickets?assignedTo=7&status=in_progress&dueDate=2025-01-31&location=Roof&mediaType=VIDEO", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	f := svc.filter
	if f.AssignedTo == nil || *f.AssignedTo != 7 || f.CreatedBy != nil {
		t.Errorf("assignedTo/createdBy = %v/%v", f.AssignedTo, f.CreatedBy)
	}
	if f.Status != model.TicketStatusInProgress || f.DueDate.String() != "2025-01-31" || f.Location != "Roof" || f.MediaType != model.MediaTypeVideo {
		t.Errorf("filter = %+v", f)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %s", w.Body)
	}
}

func TestTicketBadInput(t *testing.T) {
	r := ticketRouter(&fakeTickets{})
	for _, target := range []string{"/tickets?status=DONE", "/tickets?assignedTo=x", "/tickets?dueDate=31.01.2025", "/tickets/abc"} {
		if w := serve(r, httptest.NewRequest(http.MethodGet, target, nil)); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, w.Code)
		}
	}
	if w := serve(r, httptest.NewRequest(http.MethodPut, "/tickets/3/assign", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("assign without userId: status = %d", w.Code)
	}
}

func TestTicketErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.ErrTicketNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: user 9 does not exist", errs.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := serve(ticketRouter(&fakeTickets{err: tt.err}), httptest.NewRequest(http.MethodGet, "/tickets/5", nil))
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestTicketCreateAndAssign(t *testing.T) {
	svc := &fakeTickets{}
	r := ticketRouter(svc)
	body := `{"createdBy":2,"title":"Door","dueDate":"2030-02-01","location":"Gate","mediaType":"PHOTO","status":"FINISHED"}`
	w := serve(r, httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var got model.Ticket
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != model.TicketStatusOpen {
		t.Errorf("status = %s", got.Status)
	}

	w = serve(r, httptest.NewRequest(http.MethodPut, "/tickets/3/assign?userId=7", nil))
	if w.Code != http.StatusOK || svc.assigned != [2]int{3, 7} {
		t.Errorf("assign: code %d, args %v", w.Code, svc.assigned)
	}
}

type fakeAuth struct{ err error }

func (f fakeAuth) Register(context.Context, model.RegisterRequest) (*model.User, error) {
	return &model.User{UserID: 1}, f.err
}

func (f fakeAuth) Login(context.Context, model.LoginRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

func TestRegisterPlainText(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{nil, http.StatusOK, "User registered"},
		{errs.ErrUserExists, http.StatusBadRequest, "User already exists"},
	}
	for _, tt := range tests {
		r := gin.New()
		r.POST("/auth/register", NewAuthHandler(fakeAuth{err: tt.err}).Register)
		w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"name":"a","password":"b","role":"WORKER"}`)))
		if w.Code != tt.wantCode || w.Body.String() != tt.wantBody {
			t.Errorf("got %d %q, want %d %q", w.Code, w.Body, tt.wantCode, tt.wantBody)
		}
	}
}

func TestLoginUnauthorized(t *testing.T) {
	r := gin.New()
	r.POST("/auth/login", NewAuthHandler(fakeAuth{err: errs.ErrInvalidCredentials}).Login)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"name":"a","password":"b"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Auth("s3cret"))
	r.GET("/me", NewAuthHandler(fakeAuth{}).Me)

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}

	other, _ := authtoken.Sign("other", &model.User{UserID: 1, Name: "x", Role: model.RoleWorker}, time.Hour, time.Now())
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Errorf("foreign token: status = %d", w.Code)
	}

	tok, _ := authtoken.Sign("s3cret", &model.User{UserID: 4, Name: "nina", Role: model.RoleSupervisor}, time.Hour, time.Now())
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(HeaderRequestID, "req-1")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", w.Code)
	}
	if w.Header().Get(HeaderRequestID) != "req-1" {
		t.Errorf("request id not propagated")
	}
	var u model.User
	_ = json.Unmarshal(w.Body.Bytes(), &u)
	if u.UserID != 4 || u.Name != "nina" || u.Role != model.RoleSupervisor {
		t.Errorf("me = %+v", u)
	}
}

type fakeMedia struct {
	up     model.MediaUpload
	result string
}

func (f *fakeMedia) Create(_ context.Context, up model.MediaUpload) (*model.Media, error) {
	f.up = up
	return &model.Media{MediaID: 3, MediaType: up.MediaType, BlobType: up.BlobType, Content: up.Content}, nil
}
func (f *fakeMedia) List(context.Context) ([]model.Media, error)           { return nil, nil }
func (f *fakeMedia) ListUnanalyzed(context.Context) ([]model.Media, error) { return nil, nil }
func (f *fakeMedia) GetByID(_ context.Context, id int) (*model.Media, error) {
	return &model.Media{MediaID: id}, nil
}
func (f *fakeMedia) SetAnalyzed(_ context.Context, id int, v bool) (*model.Media, error) {
	return &model.Media{MediaID: id, Analyzed: v}, nil
}
func (f *fakeMedia) SetResult(_ context.Context, id int, s string) (*model.Media, error) {
	f.result = s
	return &model.Media{MediaID: id, Result: s}, nil
}
func (f *fakeMedia) SetReason(_ context.Context, id int, s string) (*model.Media, error) {
	return &model.Media{MediaID: id, Reason: s}, nil
}

func TestMediaUpload(t *testing.T) {
	svc := &fakeMedia{}
	h := NewMediaHandler(svc)
	r := gin.New()
	r.POST("/media", h.Create)
	r.PUT("/media/:id/result", h.UpdateResult)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "clip.webm")
	_, _ = part.Write([]byte("webm-bytes"))
	_ = mw.WriteField("mediaType", "VIDEO")
	_ = mw.WriteField("blobType", "video/webm")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := serve(r, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if svc.up.Filename != "clip.webm" || svc.up.MediaType != model.MediaTypeVideo || svc.up.BlobType != "video/webm" || string(svc.up.Content) != "webm-bytes" {
		t.Errorf("upload = %+v", svc.up)
	}

	w = serve(r, httptest.NewRequest(http.MethodPost, "/media", strings.NewReader("")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", w.Code)
	}

	w = serve(r, httptest.NewRequest(http.MethodPut, "/media/3/result", strings.NewReader("water damage")))
	if w.Code != http.StatusOK || svc.result != "water damage" {
		t.Errorf("result: code %d, stored %q", w.Code, svc.result)
	}
}

func TestMediaUploadTooLarge(t *testing.T) {
	svc := &fakeMedia{}
	h := NewMediaHandler(svc)
	h.maxUpload = 512
	r := gin.New()
	r.POST("/media", h.Create)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.jpg")
	_, _ = part.Write(bytes.Repeat([]byte{0xff}, 8<<10))
	_ = mw.WriteField("mediaType", "PHOTO")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := serve(r, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if svc.up.Filename != "" {
		t.Errorf("oversized upload reached the service: %+v", svc.up)
	}
}
