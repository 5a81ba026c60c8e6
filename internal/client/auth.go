package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/team-spoved/spoved/internal/authtoken"
	"github.com/team-spoved/spoved/internal/model"
	"github.com/team-spoved/spoved/internal/session"
)

type AuthClient struct {
	rest
}

// Login exchanges credentials for a bearer token.
func (c *AuthClient) Login(ctx context.Context, name, password string) (string, error) {
	var resp model.LoginResponse
	err := c.doJSON(ctx, "Login", http.MethodPost, "/auth/login", nil,
		model.LoginRequest{Name: name, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("Login failed: empty token")
	}
	return resp.Token, nil
}

// Register creates an account and returns the server's confirmation text.
func (c *AuthClient) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	var msg string
	if err := c.doJSON(ctx, "Register", http.MethodPost, "/auth/register", nil, req, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// SignIn logs in, persists the identity carried by the token and attaches it
// to c. It returns the session and the route the user lands on.
func (c *Client) SignIn(ctx context.Context, store *session.Store, name, password string) (*session.Session, string, error) {
	token, err := c.Auth.Login(ctx, name, password)
	if err != nil {
		return nil, "", err
	}
	claims, err := authtoken.ParseUnverified(token)
	if err != nil {
		return nil, "", fmt.Errorf("Login failed: %w", err)
	}
	// Any role other than WORKER lands on the supervisor board.
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		role = model.Role(claims.Role)
	}
	displayName := claims.Name()
	if displayName == "" {
		displayName = name
	}
	s := &session.Session{
		UserID: claims.UserID,
		Name:   displayName,
		Role:   role,
		JWT:    token,
	}
	if err := store.Save(s); err != nil {
		return nil, "", err
	}
	c.SetSession(s)
	c.Auth.log.Info().Int("user_id", s.UserID).Str("role", string(s.Role)).Msg("signed in")
	return s, role.HomeRoute(), nil
}

// SignOut clears the persisted identity.
func (c *Client) SignOut(store *session.Store) error {
	if err := store.Clear(); err != nil {
		return err
	}
	c.SetSession(&session.Session{})
	return nil
}

// Me asks the server who the current token belongs to.
func (c *AuthClient) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, "Who am I", http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
