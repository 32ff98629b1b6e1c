package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/service"
	"github.com/himanshumudigonda/musclemeter/internal/transport/middleware"
)

type OccupancyHandler struct {
	capacityService service.CapacityService
}

func NewOccupancyHandler(capacityService service.CapacityService) *OccupancyHandler {
	return &OccupancyHandler{capacityService: capacityService}
}

type setOccupancyRequest struct {
	Count *int `json:"count" binding:"required"`
}

type adjustOccupancyRequest struct {
	Delta *int `json:"delta" binding:"required"`
}

func (h *OccupancyHandler) GetOccupancy(c *gin.Context) {
	occ, err := h.capacityService.GetOccupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", occ)
}

func (h *OccupancyHandler) SetOccupancy(c *gin.Context) {
	var req setOccupancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	occ, err := h.capacityService.SetOccupancy(c.Request.Context(), actor, c.Param("id"), *req.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Occupancy updated", occ)
}

func (h *OccupancyHandler) AdjustOccupancy(c *gin.Context) {
	var req adjustOccupancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(c)
	occ, err := h.capacityService.AdjustOccupancy(c.Request.Context(), actor, c.Param("id"), *req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Occupancy updated", occ)
}

func (h *OccupancyHandler) ResetOccupancy(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	occ, err := h.capacityService.ResetOccupancy(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Occupancy reset", occ)
}
