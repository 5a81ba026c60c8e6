package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/team-spoved/spoved/internal/model"
)

type UserClient struct {
	rest
}

// List returns users matching f via GET /users?role=&name=&id=.
func (c *UserClient) List(ctx context.Context, f model.UserFilter) ([]model.User, error) {
	q := url.Values{}
	if f.ID != nil {
		q.Set("id", strconv.Itoa(*f.ID))
	}
	if f.Role != "" {
		q.Set("role", string(f.Role))
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	var users []model.User
	if err := c.doJSON(ctx, "List users", http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *UserClient) Get(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, "Get user", http.MethodGet, idPath("/users", id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *UserClient) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, "Create user", http.MethodPost, "/users", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
