package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"reservation-backend/config"
	"reservation-backend/internal/booking"
	"reservation-backend/internal/mw"
	"reservation-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, service *booking.Service, cfg *config.Config, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, service, webpushOptions)

	// Initialize middleware
	auth := mw.Auth(cfg.Server.JWTSecret, s)
	rateLimiter := mw.RateLimiter(cfg.Server.RateLimitPerMinute)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	{
		// Public catalog, cached
		api.GET("/sites", caching, GetSites(db))
		api.GET("/sites/:site_id/locals", caching, GetLocals(db))
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Everything behind the identity check and the admission gate
		authed := api.Group("", auth, rateLimiter)
		{
			authed.POST("/reservations", handler.SubmitReservation)
			authed.GET("/reservations", handler.ListMyReservations)
			authed.POST("/reservations/:id/cancel", handler.CancelReservation)

			authed.GET("/subscriptions", handler.GetSubscription)
			authed.PUT("/subscriptions", handler.PutSubscription)
			authed.DELETE("/subscriptions", handler.DeleteSubscription)

			admin := authed.Group("", mw.RequireAdmin())
			{
				admin.GET("/reservations/history", handler.History)
				admin.POST("/reservations/:id/decision", handler.DecideReservation)
				admin.POST("/admin/sites", handler.CreateSite)
				admin.POST("/admin/locals", handler.CreateLocal)
				admin.PUT("/admin/locals/:id", handler.UpdateLocal)
				admin.DELETE("/admin/locals/:id", handler.DeleteLocal)
			}
		}
	}

	return r
}

// PrincipalOrAbort extracts the authenticated principal or writes a 401.
func PrincipalOrAbort(c *gin.Context) (booking.Principal, bool) {
	principal, ok := mw.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return principal, ok
}
