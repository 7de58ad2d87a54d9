package api

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/encurtaweb/encurtador/internal/errors"
	"github.com/encurtaweb/encurtador/internal/services"
)

// codePattern validates the redirect path parameter before it reaches the
// service layer.
var codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SetupRoutes configures all Gin API routes and injects necessary dependencies.
func SetupRoutes(router *gin.Engine, linkService *services.LinkService, log *zap.Logger) {
	// Health Check Route - used for monitoring service availability
	router.GET("/health", HealthCheckHandler)

	api := router.Group("/api")
	{
		// POST endpoint for creating new shortened links
		api.POST("/links", CreateLinkHandler(linkService, log))
	}

	// Redirection Route - handles the actual URL redirection at root level
	// This is where users access their short URLs (e.g., localhost:8080/abc123)
	router.GET("/:code", RedirectHandler(linkService, log))
}

// HealthCheckHandler handles the /health route to verify service status.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLinkRequest represents the JSON request body for creating a link.
// Scheme, forbidden-destination and alias-collision rules are enforced by
// the service; the binding tags only cover request shape.
type CreateLinkRequest struct {
	Destination string     `json:"destination" binding:"required"`
	CustomAlias string     `json:"customAlias" binding:"omitempty,max=30"`
	Title       string     `json:"title" binding:"omitempty,max=255"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	MaxClicks   *int64     `json:"maxClicks" binding:"omitempty,min=1"`
	OwnerID     *uint      `json:"ownerId"`
}

// CreateLinkHandler handles the creation of a shortened URL.
// Returns 201 with the persisted record (clicks present as 0) on success.
func CreateLinkHandler(linkService *services.LinkService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"message": "Request doesn't match the schema",
				"details": err.Error(),
			})
			return
		}

		link, err := linkService.CreateLink(c.Request.Context(), services.CreateLinkInput{
			Destination: req.Destination,
			CustomAlias: req.CustomAlias,
			Title:       req.Title,
			ExpiresAt:   req.ExpiresAt,
			MaxClicks:   req.MaxClicks,
			OwnerID:     req.OwnerID,
		})
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": link})
	}
}

// RedirectHandler handles the redirection from a short URL to its
// destination. A successful resolution answers 307 so clients re-issue the
// same method against the destination.
func RedirectHandler(linkService *services.LinkService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if !codePattern.MatchString(code) {
			c.JSON(http.StatusBadRequest, gin.H{
				"message": "Request doesn't match the schema",
				"details": "code must match ^[a-zA-Z0-9_-]+$",
			})
			return
		}

		link, err := linkService.Resolve(c.Request.Context(), code)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.Redirect(http.StatusTemporaryRedirect, link.Destination)
	}
}

// respondError translates service errors at the boundary: known APIError
// values keep their status and stable message, anything else is logged and
// answered with a generic 500 so no internal detail leaks.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"message": apiErr.Message})
		return
	}
	log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
