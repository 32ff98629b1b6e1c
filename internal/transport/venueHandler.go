package transport

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/discovery"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/himanshumudigonda/musclemeter/internal/pkg/geo"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/himanshumudigonda/musclemeter/internal/transport/middleware"
)

type VenueHandler struct {
	venueService service.VenueService
}

func NewVenueHandler(venueService service.VenueService) *VenueHandler {
	return &VenueHandler{venueService: venueService}
}

type updatePriceRequest struct {
	Price *float64 `json:"price" binding:"required"`
}

func (h *VenueHandler) Discover(c *gin.Context) {
	criteria, err := parseCriteria(c)
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := h.venueService.Discover(c.Request.Context(), criteria)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, nonNil(items), len(items))
}

func parseCriteria(c *gin.Context) (discovery.Criteria, error) {
	criteria := discovery.Criteria{Search: strings.TrimSpace(c.Query("q"))}

	if crowd := c.Query("crowd"); crowd != "" && crowd != "all" {
		level, err := entity.ParseCrowdLevel(crowd)
		if err != nil {
			return criteria, err
		}
		criteria.Crowd = level
	}

	for _, raw := range c.QueryArray("amenities") {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				criteria.Amenities = append(criteria.Amenities, a)
			}
		}
	}

	var err error
	if criteria.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return criteria, err
	}
	if criteria.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return criteria, err
	}

	lat, err := queryFloat(c, "lat")
	if err != nil {
		return criteria, err
	}
	lng, err := queryFloat(c, "lng")
	if err != nil {
		return criteria, err
	}
	switch {
	case lat != nil && lng != nil:
		criteria.Origin = &geo.Point{Lat: *lat, Lng: *lng}
		if !criteria.Origin.Valid() {
			return criteria, fmt.Errorf("%w: lat must be within [-90, 90] and lng within [-180, 180]", entity.ErrInvalidInput)
		}
	case lat != nil || lng != nil:
		return criteria, fmt.Errorf("%w: lat and lng must be given together", entity.ErrInvalidInput)
	}

	if criteria.SortBy, err = discovery.ParseSortBy(c.Query("sort")); err != nil {
		return criteria, err
	}
	return criteria, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a finite number", entity.ErrInvalidInput, key)
	}
	return &v, nil
}

func (h *VenueHandler) GetVenue(c *gin.Context) {
	details, err := h.venueService.GetVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", details)
}

func (h *VenueHandler) PaymentLink(c *gin.Context) {
	link, err := h.venueService.PaymentLink(c.Request.Context(), c.Param("id"), c.Param("plan_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"url": link})
}

func (h *VenueHandler) CreateVenue(c *gin.Context) {
	var req service.CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	venue, err := h.venueService.CreateVenue(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Venue created", venue)
}

func (h *VenueHandler) ListOwnerVenues(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	venues, err := h.venueService.ListOwnerVenues(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, nonNil(venues), len(venues))
}

func (h *VenueHandler) DeactivateVenue(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	if err := h.venueService.DeactivateVenue(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Venue deactivated", nil)
}

func (h *VenueHandler) AddPlan(c *gin.Context) {
	var req service.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	plan, err := h.venueService.AddPlan(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Plan added", plan)
}

func (h *VenueHandler) UpdatePlanPrice(c *gin.Context) {
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	plan, err := h.venueService.UpdatePlanPrice(c.Request.Context(), actor, c.Param("id"), c.Param("plan_id"), *req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Plan price updated", plan)
}
