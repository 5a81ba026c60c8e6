package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/model"
	"github.com/team-spoved/spoved/internal/service"
)

type AuthHandler struct {
	svc service.AuthServicer
}

func NewAuthHandler(svc service.AuthServicer) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register answers with plain text, matching what existing clients expect.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}
	if _, err := h.svc.Register(c.Request.Context(), req); err != nil {
		switch {
		case errors.Is(err, errs.ErrUserExists):
			c.String(http.StatusBadRequest, "User already exists")
		case errors.Is(err, errs.ErrInvalidArgument):
			c.String(http.StatusBadRequest, err.Error())
		default:
			_ = c.Error(err)
			c.String(http.StatusInternalServerError, "Registration failed")
		}
		return
	}
	c.String(http.StatusOK, "User registered")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	token, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.LoginResponse{Token: token})
}

// Me echoes the identity carried by the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.JSON(http.StatusOK, model.User{UserID: claims.UserID, Name: claims.Name(), Role: model.Role(claims.Role)})
}
