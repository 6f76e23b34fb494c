package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
)

type purchaseRequest struct {
	SiteID      string     `json:"site_id"`
	Variant     string     `json:"variant"`
	ContentIDs  []string   `json:"content_ids"`
	AutoRenewal bool       `json:"auto_renewal"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (s *Server) CreatePurchase(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	siteID, err := snowflake.ParseString(strings.TrimSpace(req.SiteID))
	if err != nil {
		AbortWithError(c, newValidationError("site_id", "invalid_site_id", "invalid site id"))
		return
	}

	contentIDs := make([]snowflake.ID, 0, len(req.ContentIDs))
	for _, raw := range req.ContentIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, newValidationError("content_ids", "invalid_content_id", "invalid content id"))
			return
		}
		contentIDs = append(contentIDs, id)
	}

	created, err := s.placementSvc.Purchase(c.Request.Context(), placementdomain.PurchaseRequest{
		AccountID:   accountID,
		SiteID:      siteID,
		Variant:     strings.TrimSpace(req.Variant),
		ContentIDs:  contentIDs,
		AutoRenewal: req.AutoRenewal,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": placementResponse(created)})
}

func (s *Server) ListPlacements(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	placements, err := s.placementSvc.List(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]placementdomain.Response, 0, len(placements))
	for i := range placements {
		resp = append(resp, placementResponse(&placements[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPlacement(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	placementID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_placement_id", "invalid placement id"))
		return
	}

	found, err := s.placementSvc.Get(c.Request.Context(), accountID, placementID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": placementResponse(found)})
}

func (s *Server) DeletePlacement(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	placementID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_placement_id", "invalid placement id"))
		return
	}

	if err := s.placementSvc.Delete(c.Request.Context(), accountID, placementID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"refunded": true}})
}

func (s *Server) RenewPlacement(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	placementID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_placement_id", "invalid placement id"))
		return
	}

	renewed, err := s.placementSvc.Renew(c.Request.Context(), accountID, placementID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": placementResponse(renewed)})
}

type autoRenewalRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) SetPlacementAutoRenewal(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	placementID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_placement_id", "invalid placement id"))
		return
	}

	var req autoRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "invalid_enabled", "enabled must be a boolean"))
		return
	}

	if err := s.placementSvc.SetAutoRenewal(c.Request.Context(), accountID, placementID, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"auto_renewal": *req.Enabled}})
}

func placementResponse(p *placementdomain.Placement) placementdomain.Response {
	contentIDs := []string{}
	if ids, err := p.ContentIDList(); err == nil {
		for _, id := range ids {
			contentIDs = append(contentIDs, id.String())
		}
	}

	return placementdomain.Response{
		ID:              p.ID.String(),
		AccountID:       p.AccountID.String(),
		SiteID:          p.SiteID.String(),
		Variant:         p.Variant,
		ContentIDs:      contentIDs,
		Status:          string(p.Status),
		GrossPriceCents: p.GrossPriceCents,
		DiscountPercent: p.DiscountPercent,
		FinalPriceCents: p.FinalPriceCents,
		AutoRenewal:     p.AutoRenewal,
		RenewalCount:    p.RenewalCount,
		ExternalPostID:  p.ExternalPostID,
		ScheduledAt:     p.ScheduledAt,
		PurchasedAt:     p.PurchasedAt,
		LastRenewedAt:   p.LastRenewedAt,
		ExpiresAt:       p.ExpiresAt,
	}
}
