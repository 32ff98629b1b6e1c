package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/himanshumudigonda/musclemeter/internal/transport/middleware"
)

type statsView struct {
	*entity.VenueBookingStats
	ActiveMembers int     `json:"active_members"`
	ApprovalRate  float64 `json:"approval_rate"`
}

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	booking, err := h.bookingService.CreateBooking(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Booking submitted for review", booking)
}

func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	bookings, err := h.bookingService.ListUserBookings(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, nonNil(bookings), len(bookings))
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	booking, err := h.bookingService.GetBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", booking)
}

func (h *BookingHandler) ListVenueBookings(c *gin.Context) {
	filter, err := entity.ParseBookingFilter(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	actor, _ := middleware.ActorFrom(c)
	bookings, err := h.bookingService.ListVenueBookings(c.Request.Context(), actor, c.Param("id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, nonNil(bookings), len(bookings))
}

func (h *BookingHandler) GetVenueStats(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	stats, err := h.bookingService.GetVenueStats(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", statsView{
		VenueBookingStats: stats,
		ActiveMembers:     stats.ActiveMembers(),
		ApprovalRate:      stats.ApprovalRate(),
	})
}

func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	booking, err := h.bookingService.ApproveBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Booking approved", booking)
}

func (h *BookingHandler) RejectBooking(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	booking, err := h.bookingService.RejectBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Booking rejected", booking)
}

// nonNil keeps empty lists rendered as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
