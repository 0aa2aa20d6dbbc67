package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vireo-social/vireo/internal/apperr"
	"github.com/vireo-social/vireo/internal/auth"
)

// AuthHandler exposes the signup and login endpoints.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Signup creates a new user account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body auth.SignupInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}
	if errSignup := h.svc.Signup(c.Request.Context(), c.ClientIP(), body); errSignup != nil {
		respondError(c, errSignup)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully."})
}

// Login verifies credentials and returns a token plus the public user.
func (h *AuthHandler) Login(c *gin.Context) {
	var body auth.LoginInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, apperr.New(apperr.KindValidation, "Invalid JSON body."))
		return
	}
	result, errLogin := h.svc.Login(c.Request.Context(), c.ClientIP(), body)
	if errLogin != nil {
		respondError(c, errLogin)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.User.Public(),
	})
}
