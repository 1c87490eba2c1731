package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

type createSiteRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

// CreateSite handles POST /api/admin/sites.
func (h *Handler) CreateSite(c *gin.Context) {
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site := model.Site{Name: req.Name, Address: req.Address}
	if err := h.store.DB().Create(&site).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create site"})
		return
	}
	c.JSON(http.StatusCreated, site)
}

type localRequest struct {
	SiteID    int64    `json:"site_id" binding:"required"`
	Name      string   `json:"name" binding:"required"`
	Capacity  int      `json:"capacity" binding:"required,min=1"`
	Equipment []string `json:"equipment"`
	Available *bool    `json:"available"`
}

// CreateLocal handles POST /api/admin/locals.
func (h *Handler) CreateLocal(c *gin.Context) {
	var req localRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var site model.Site
	if err := h.store.DB().First(&site, req.SiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up site"})
		}
		return
	}

	local := model.Local{
		SiteID:    req.SiteID,
		Name:      req.Name,
		Capacity:  req.Capacity,
		Available: req.Available == nil || *req.Available,
	}
	local.SetEquipmentTags(req.Equipment)

	if err := h.store.DB().Create(&local).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create local"})
		return
	}
	c.JSON(http.StatusCreated, localResponse{Local: local, Equipment: local.EquipmentTags()})
}

// UpdateLocal handles PUT /api/admin/locals/:id. Capacity, equipment and the
// availability override can change; existing reservations keep their rows.
func (h *Handler) UpdateLocal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid local ID"})
		return
	}

	var req localRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var local model.Local
	if err := h.store.DB().First(&local, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "local not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up local"})
		}
		return
	}

	local.SiteID = req.SiteID
	local.Name = req.Name
	local.Capacity = req.Capacity
	if req.Available != nil {
		local.Available = *req.Available
	}
	local.SetEquipmentTags(req.Equipment)

	if err := h.store.DB().Save(&local).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update local"})
		return
	}
	c.JSON(http.StatusOK, localResponse{Local: local, Equipment: local.EquipmentTags()})
}

// DeleteLocal handles DELETE /api/admin/locals/:id. Deletion is blocked while
// pending or confirmed reservations reference the local.
func (h *Handler) DeleteLocal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid local ID"})
		return
	}

	active, err := h.store.HasActiveReservationsForLocal(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check reservations"})
		return
	}
	if active {
		c.JSON(http.StatusConflict, gin.H{"error": "local has active reservations"})
		return
	}

	if err := h.store.DB().Delete(&model.Local{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete local"})
		return
	}
	c.Status(http.StatusNoContent)
}
