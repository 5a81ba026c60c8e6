package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/model"
)

type UserServicer interface {
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
}

type UserService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewUserService(db *gorm.DB, log zerolog.Logger) *UserService {
	return &UserService{
		db:  db,
		log: log.With().Str("component", "service.users").Logger(),
	}
}

// List filters by exact id, exact role and a case-insensitive name substring.
func (s *UserService) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	users := []model.User{}
	tx := s.db.WithContext(ctx).Model(&model.User{})
	if f.ID != nil {
		tx = tx.Where("user_id = ?", *f.ID)
	}
	if f.Role != "" {
		role, err := model.ParseRole(string(f.Role))
		if err != nil {
			return nil, invalid(err)
		}
		tx = tx.Where("role = ?", role)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if err := tx.Order("user_id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create adds a user. A password is optional here; accounts created without
// one cannot log in until registered.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	u, err := createUser(ctx, s.db, req.Name, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", u.UserID).Str("role", string(u.Role)).Bool("has_password", u.PasswordHash != "").Msg("user created")
	return u, nil
}

func createUser(ctx context.Context, db *gorm.DB, name, password string, role model.Role) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid(errors.New("name is required"))
	}
	r, err := model.ParseRole(string(role))
	if err != nil {
		return nil, invalid(err)
	}
	var n int64
	if err := db.WithContext(ctx).Model(&model.User{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errs.ErrUserExists
	}
	u := &model.User{Name: name, Role: r}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}
