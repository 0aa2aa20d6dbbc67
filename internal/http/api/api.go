// Package api wires the HTTP surface: route registration and the access
// guard that gates every protected endpoint.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vireo-social/vireo/internal/auth"
	"github.com/vireo-social/vireo/internal/config"
	authhandlers "github.com/vireo-social/vireo/internal/http/api/handlers"
	"github.com/vireo-social/vireo/internal/ratelimit"
	"github.com/vireo-social/vireo/internal/security"
	"github.com/vireo-social/vireo/internal/storage"
)

// Upload caps for multipart bodies.
const (
	maxUploadBytes = 5 << 20
	maxMediaBytes  = 10 << 20
)

// RegisterRoutes registers all routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, conn *gorm.DB, cfg config.AppConfig, limiter *ratelimit.Manager, images *storage.ImageStore, media *storage.MediaStore) {
	if r == nil || conn == nil {
		return
	}

	healthHandler := authhandlers.NewHealthHandler(conn)
	r.GET("/healthz", healthHandler.Healthz)

	authService := auth.NewService(conn, limiter, cfg.JWT)
	authHandler := authhandlers.NewAuthHandler(authService)
	r.POST("/api/signup", authHandler.Signup)
	r.POST("/api/login", authHandler.Login)

	authed := r.Group("/api")
	authed.Use(authMiddleware(cfg.JWT))

	profileHandler := authhandlers.NewProfileHandler(conn, images, maxUploadBytes)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.POST("/profile/image", profileHandler.UploadImage)
	authed.GET("/profile/image/:name", profileHandler.ServeImage)
	authed.POST("/profile/skills", profileHandler.AddSkill)
	authed.GET("/profile/skills", profileHandler.ListSkills)
	authed.DELETE("/profile/skills/:id", profileHandler.DeleteSkill)

	postHandler := authhandlers.NewPostHandler(conn, media, maxMediaBytes)
	authed.POST("/posts/upload-media", postHandler.UploadMedia)
	authed.GET("/posts/uploads/:name", postHandler.ServeMedia)
	authed.POST("/posts/", postHandler.Create)
	authed.GET("/posts/", postHandler.List)
	authed.GET("/posts/:id", postHandler.Get)
	authed.DELETE("/posts/:id", postHandler.Delete)
	authed.POST("/posts/:id/like", postHandler.Like)
	authed.POST("/posts/:id/comments", postHandler.AddComment)
	authed.GET("/posts/:id/comments", postHandler.ListComments)
}

// authMiddleware validates bearer tokens and binds the resolved user id to
// the request context. It is stateless; validity is signature plus expiry.
func authMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header.", "kind": "authentication"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format.", "kind": "authentication"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Empty token.", "kind": "authentication"})
			return
		}

		userID, errParse := security.ParseUserToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token.", "kind": "authentication"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
