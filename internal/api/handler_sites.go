package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// SiteResponse represents the API response for a single site.
type SiteResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	TotalLocals int64  `json:"totalLocals"`
}

// GetSites handles the GET /api/sites request.
func GetSites(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sites []model.Site
		if err := db.Find(&sites).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sites"})
			return
		}

		type AggRow struct {
			SiteID      int64
			TotalLocals int64
		}
		var aggs []AggRow
		if err := db.
			Model(&model.Local{}).
			Select("site_id as site_id, COUNT(*) as total_locals").
			Group("site_id").
			Scan(&aggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate locals"})
			return
		}

		aggMap := make(map[int64]AggRow, len(aggs))
		for _, a := range aggs {
			aggMap[a.SiteID] = a
		}

		responses := make([]SiteResponse, 0, len(sites))
		for _, s := range sites {
			a := aggMap[s.ID]
			responses = append(responses, SiteResponse{
				ID: s.ID, Name: s.Name, Address: s.Address,
				TotalLocals: a.TotalLocals,
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}

// localResponse is the flattened structure for the local catalog response.
type localResponse struct {
	model.Local
	Equipment []string `json:"equipment"`
}

// GetLocals handles the GET /api/sites/{site_id}/locals request.
func GetLocals(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID, err := strconv.ParseInt(c.Param("site_id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid site ID"})
			return
		}

		var locals []model.Local
		if err := db.Where("site_id = ?", siteID).Find(&locals).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve locals"})
			return
		}

		response := make([]localResponse, 0, len(locals))
		for _, l := range locals {
			response = append(response, localResponse{
				Local:     l,
				Equipment: l.EquipmentTags(),
			})
		}
		c.JSON(http.StatusOK, response)
	}
}
