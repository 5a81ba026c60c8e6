package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/team-spoved/spoved/internal/authtoken"
	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/model"
)

type AuthServicer interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (string, error)
}

type AuthService struct {
	db     *gorm.DB
	secret string
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, log zerolog.Logger) *AuthService {
	return &AuthService{
		db:     db,
		secret: secret,
		ttl:    ttl,
		log:    log.With().Str("component", "service.auth").Logger(),
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	if req.Password == "" {
		return nil, invalid(errors.New("password is required"))
	}
	u, err := createUser(ctx, s.db, req.Name, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", u.UserID).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

// Login checks the credentials and returns a signed token whose subject is
// the user name.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (string, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(req.Name)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errs.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return "", errs.ErrInvalidCredentials
	}
	return authtoken.Sign(s.secret, &u, s.ttl, s.now())
}
