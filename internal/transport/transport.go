package transport

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/transport/middleware"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Venue     *VenueHandler
	Booking   *BookingHandler
	Occupancy *OccupancyHandler
	Stream    *StreamHandler
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

func InitRoutes(h Handlers, verifier middleware.TokenVerifier, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Logger())

	router.GET("/health", healthHandler(cfg.HealthChecks))

	api := router.Group("/api/v1")

	// Streams stay open past the request timeout.
	api.GET("/venues/:id/stream", h.Stream.Stream)

	timed := api.Group("")
	timed.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		// Public venue routes
		venues := timed.Group("/venues")
		{
			venues.GET("", h.Venue.Discover)
			venues.GET("/:id", h.Venue.GetVenue)
			venues.GET("/:id/occupancy", h.Occupancy.GetOccupancy)
			venues.GET("/:id/plans/:plan_id/payment-link", h.Venue.PaymentLink)
		}

		authed := timed.Group("")
		authed.Use(middleware.JWTAuth(verifier))

		// Athlete booking routes
		bookings := authed.Group("/bookings")
		{
			bookings.POST("", h.Booking.CreateBooking)
			bookings.GET("", h.Booking.ListMyBookings)
			bookings.GET("/:id", h.Booking.GetBooking)
		}

		// Owner routes
		owner := authed.Group("/owner")
		owner.Use(middleware.RequireRole(entity.RoleOwner))
		{
			owner.POST("/venues", h.Venue.CreateVenue)
			owner.GET("/venues", h.Venue.ListOwnerVenues)
			owner.DELETE("/venues/:id", h.Venue.DeactivateVenue)
			owner.POST("/venues/:id/plans", h.Venue.AddPlan)
			owner.PATCH("/venues/:id/plans/:plan_id", h.Venue.UpdatePlanPrice)

			owner.PUT("/venues/:id/occupancy", h.Occupancy.SetOccupancy)
			owner.POST("/venues/:id/occupancy", h.Occupancy.AdjustOccupancy)
			owner.DELETE("/venues/:id/occupancy", h.Occupancy.ResetOccupancy)

			owner.GET("/venues/:id/bookings", h.Booking.ListVenueBookings)
			owner.GET("/venues/:id/stats", h.Booking.GetVenueStats)
			owner.POST("/bookings/:id/approve", h.Booking.ApproveBooking)
			owner.POST("/bookings/:id/reject", h.Booking.RejectBooking)
		}
	}

	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":     state,
			"components": components,
			"time":       time.Now().UTC(),
		})
	}
}
