// Package handlers is the JSON boundary in front of the engine: it parses
// requests, maps service errors to status codes, and stays free of business
// rules. Session management proper is out of scope; callers identify
// themselves with the X-User-ID header issued at login.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	usersvc "github.com/dcespedes8/avicontrol/internal/service/users"
)

// AuthHandler handles login and caller resolution.
type AuthHandler struct {
	users  *usersvc.Service
	logger *zap.Logger
}

// NewAuthHandler constructs the auth HTTP adapter.
func NewAuthHandler(users *usersvc.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{users: users, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates a username/password pair and returns the account.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, sanitize(user))
}

// Caller resolves the requesting account from the X-User-ID header.
func (h *AuthHandler) Caller(c *gin.Context) (models.User, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return models.User{}, false
	}
	user, found := h.users.ByID(id)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return models.User{}, false
	}
	return user, true
}

// sanitize blanks the stored password before an account leaves the API.
func sanitize(u models.User) models.User {
	u.Password = ""
	return u
}
