package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
)

type createSiteRequest struct {
	Domain            string `json:"domain"`
	LinkPriceCents    int64  `json:"link_price_cents"`
	ArticlePriceCents int64  `json:"article_price_cents"`
	SlotPriceCents    int64  `json:"slot_price_cents"`
	SlotsCount        int    `json:"slots_count"`
}

func (s *Server) CreateSite(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.siteSvc.Create(c.Request.Context(), sitedomain.CreateRequest{
		OwnerAccountID:    accountID,
		Domain:            strings.TrimSpace(req.Domain),
		LinkPriceCents:    req.LinkPriceCents,
		ArticlePriceCents: req.ArticlePriceCents,
		SlotPriceCents:    req.SlotPriceCents,
		SlotsCount:        req.SlotsCount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": siteResponse(created)})
}

func (s *Server) GetSite(c *gin.Context) {
	siteID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_site_id", "invalid site id"))
		return
	}

	found, err := s.siteSvc.Get(c.Request.Context(), siteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": siteResponse(found)})
}

func siteResponse(site *sitedomain.Site) gin.H {
	return gin.H{
		"id":                  site.ID.String(),
		"owner_account_id":    site.OwnerAccountID.String(),
		"domain":              site.Domain,
		"link_price_cents":    site.LinkPriceCents,
		"article_price_cents": site.ArticlePriceCents,
		"slot_price_cents":    site.SlotPriceCents,
		"slots_count":         site.SlotsCount,
		"active":              site.Active,
	}
}
