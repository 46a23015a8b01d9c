package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/metervend/internal/middleware"
	"github.com/metervend/internal/service"
	"github.com/metervend/pkg/response"
)

// AuthHandler handles registration and login API requests
type AuthHandler struct {
	authService   *service.AuthService
	ledgerService *service.LedgerService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService, ledgerService *service.LedgerService) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		ledgerService: ledgerService,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "some fields are empty or invalid")
		return
	}

	user, meter, err := h.authService.Register(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch),
			errors.Is(err, service.ErrWeakPassword):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, "failed to register user")
		}
		return
	}

	response.Created(c, gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"meter_num": meter.Num,
	})
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "some fields are empty")
		return
	}

	token, err := h.authService.Login(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.InternalError(c, "failed to login")
		return
	}

	response.Success(c, token)
}

// Me returns the authenticated user's profile with their meter
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.InternalError(c, "failed to load profile")
		return
	}

	meter, err := h.ledgerService.GetMeter(userID)
	if err != nil {
		if errors.Is(err, service.ErrNoMeter) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalError(c, "failed to load meter")
		return
	}

	response.Success(c, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		"meter": meter,
	})
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", authMiddleware, h.Me)
	}
}
