package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"authtrail/internal/api/middleware"
	"authtrail/internal/logging"
	"authtrail/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	gate      *services.AuthenticationGate
	sessions  *services.SessionManager
	carrier   *services.SessionCarrier
	directory *services.UserDirectory
	log       *slog.Logger
}

func NewAuthHandler(gate *services.AuthenticationGate, sessions *services.SessionManager, carrier *services.SessionCarrier, directory *services.UserDirectory) *AuthHandler {
	return &AuthHandler{
		gate:      gate,
		sessions:  sessions,
		carrier:   carrier,
		directory: directory,
		log:       logging.For("handlers"),
	}
}

type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type RegisterRequest struct {
	Email       string `form:"email" json:"email" binding:"required"`
	Password    string `form:"password" json:"password" binding:"required"`
	DisplayName string `form:"display_name" json:"display_name"`
}

// LoginPage stands in for the rendered login form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	_, failed := c.GetQuery("error")
	_, registered := c.GetQuery("registered")
	c.JSON(http.StatusOK, gin.H{
		"page":       "login",
		"error":      failed,
		"registered": registered,
	})
}

// RegisterPage stands in for the rendered registration form.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "register"})
}

// Login authenticates the submitted credentials and on success starts a
// session carried by the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	// malformed bodies still count as a failed attempt
	_ = c.ShouldBind(&req)

	ctx := c.Request.Context()
	info := services.RequestInfo{
		IP:        middleware.ClientIP(c.Request),
		UserAgent: c.Request.UserAgent(),
	}

	outcome, err := h.gate.Attempt(ctx, req.Email, req.Password, info)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication is unavailable"})
		return
	}
	if !outcome.Success {
		c.Redirect(http.StatusFound, "/login?error")
		return
	}

	session, err := h.sessions.Create(ctx, outcome.User.ID, info.IP, info.UserAgent)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	if err := h.carrier.SetCookie(c, session.ID.String(), session.ExpiresAt); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.log.Info("login succeeded", "user_id", outcome.User.ID, "session_id", session.ID, "ip", info.IP)
	c.Redirect(http.StatusFound, "/dashboard")
}

// Logout revokes the carried session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID, err := h.carrier.SessionID(c.Request); err == nil {
		if err := h.sessions.Revoke(c.Request.Context(), sessionID); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
			return
		}
	}

	h.carrier.ClearCookie(c)
	c.Redirect(http.StatusFound, "/")
}

// Register creates an account with the default role.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	_, err := h.directory.Register(c.Request.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, "/login?registered")
	case errors.Is(err, services.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register"})
	}
}
