// Package auth implements the signup and login flows on top of the
// credential store, password policy, token service and rate limiter.
package auth

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vireo-social/vireo/internal/apperr"
	"github.com/vireo-social/vireo/internal/config"
	"github.com/vireo-social/vireo/internal/db"
	"github.com/vireo-social/vireo/internal/models"
	"github.com/vireo-social/vireo/internal/ratelimit"
	"github.com/vireo-social/vireo/internal/sanitize"
	"github.com/vireo-social/vireo/internal/security"
)

// Per-client limits observed on the auth endpoints.
const (
	signupLimit = 5
	loginLimit  = 10
	limitWindow = time.Minute
)

// Service orchestrates signup and login. All collaborators are injected at
// construction; the service itself holds no mutable state and is safe for
// concurrent use.
type Service struct {
	conn    *gorm.DB
	limiter *ratelimit.Manager
	jwt     config.JWTConfig
}

// NewService constructs an auth Service.
func NewService(conn *gorm.DB, limiter *ratelimit.Manager, jwt config.JWTConfig) *Service {
	return &Service{conn: conn, limiter: limiter, jwt: jwt}
}

// SignupInput is the typed signup request.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the typed login request. Identifier accepts either the
// username or the email; Username and Email are interchangeable aliases the
// wire format allows.
type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the issued token plus the public user representation.
type LoginResult struct {
	Token string
	User  *models.User
}

// Signup validates, uniqueness-checks, hashes and persists a new user.
func (s *Service) Signup(ctx context.Context, clientAddr string, in SignupInput) error {
	if errLimit := s.checkLimit(ctx, clientAddr, ratelimit.ClassSignup, signupLimit); errLimit != nil {
		return errLimit
	}

	username := sanitize.Clean(in.Username)
	email := sanitize.CleanEmail(in.Email)
	password := in.Password

	if username == "" || email == "" || password == "" {
		return apperr.New(apperr.KindValidation, "All fields are required.")
	}
	if !sanitize.ValidUsername(username) {
		return apperr.New(apperr.KindValidation, "Username must be at least 3 characters of letters, numbers, and underscores.")
	}
	if !sanitize.ValidEmail(email) {
		return apperr.New(apperr.KindValidation, "Invalid email format.")
	}
	if !security.ValidatePassword(password) {
		return apperr.New(apperr.KindValidation, "Password must be at least 8 characters and include uppercase, lowercase, digit, and special character.")
	}

	// Pre-checks give the friendlier error; the unique indexes are what
	// actually guard against concurrent duplicate signups.
	var count int64
	if errCount := s.conn.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; errCount != nil {
		log.WithError(errCount).Error("signup: username lookup failed")
		return apperr.Internal()
	}
	if count > 0 {
		return apperr.New(apperr.KindConflict, "Username already exists.")
	}
	if errCount := s.conn.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; errCount != nil {
		log.WithError(errCount).Error("signup: email lookup failed")
		return apperr.Internal()
	}
	if count > 0 {
		return apperr.New(apperr.KindConflict, "Email already exists.")
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		log.WithError(errHash).Error("signup: hash password failed")
		return apperr.Internal()
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if errCreate := s.conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return apperr.New(apperr.KindConflict, "Username or email already exists.")
		}
		log.WithError(errCreate).Error("signup: create user failed")
		return apperr.Internal()
	}
	return nil
}

// Login verifies the credentials and issues a token. Lookup and password
// failures collapse to the same generic error.
func (s *Service) Login(ctx context.Context, clientAddr string, in LoginInput) (*LoginResult, error) {
	if errLimit := s.checkLimit(ctx, clientAddr, ratelimit.ClassLogin, loginLimit); errLimit != nil {
		return nil, errLimit
	}

	identifier := in.Username
	if identifier == "" {
		identifier = in.Email
	}
	identifier = sanitize.CleanEmail(identifier)
	if identifier == "" || in.Password == "" {
		return nil, apperr.New(apperr.KindAuthentication, "Invalid credentials.")
	}

	var user models.User
	errFind := s.conn.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindAuthentication, "Invalid credentials.")
		}
		log.WithError(errFind).Error("login: user lookup failed")
		return nil, apperr.Internal()
	}
	if !security.CheckPassword(user.PasswordHash, in.Password) {
		return nil, apperr.New(apperr.KindAuthentication, "Invalid credentials.")
	}

	token, errToken := security.IssueUserToken(s.jwt.Secret, user.ID, s.jwt.Expiry)
	if errToken != nil {
		log.WithError(errToken).Error("login: issue token failed")
		return nil, apperr.Internal()
	}
	return &LoginResult{Token: token, User: &user}, nil
}

func (s *Service) checkLimit(ctx context.Context, clientAddr, class string, limit int) error {
	res, errAllow := s.limiter.Allow(ctx, ratelimit.Key(clientAddr, class), limit, limitWindow)
	if errAllow != nil {
		log.WithError(errAllow).Error("rate limit check failed")
		return apperr.Internal()
	}
	if !res.Allowed {
		return apperr.New(apperr.KindRateLimit, "Too many requests. Please try again later.")
	}
	return nil
}
