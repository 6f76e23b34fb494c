package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
)

type createRentalRequest struct {
	SiteID            string `json:"site_id"`
	TenantAccountID   string `json:"tenant_account_id"`
	SlotsCount        int    `json:"slots_count"`
	PricePerSlotCents int64  `json:"price_per_slot_cents"`
}

func (s *Server) CreateRental(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	siteID, err := snowflake.ParseString(strings.TrimSpace(req.SiteID))
	if err != nil {
		AbortWithError(c, newValidationError("site_id", "invalid_site_id", "invalid site id"))
		return
	}
	tenantID, err := snowflake.ParseString(strings.TrimSpace(req.TenantAccountID))
	if err != nil {
		AbortWithError(c, newValidationError("tenant_account_id", "invalid_tenant_account_id", "invalid tenant account id"))
		return
	}

	created, err := s.rentalSvc.Create(c.Request.Context(), rentaldomain.CreateRequest{
		OwnerAccountID:    accountID,
		TenantAccountID:   tenantID,
		SiteID:            siteID,
		SlotsCount:        req.SlotsCount,
		PricePerSlotCents: req.PricePerSlotCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rentalResponse(created)})
}

func (s *Server) ListRentals(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	role := rentaldomain.Role(strings.TrimSpace(c.Query("role")))
	rentals, err := s.rentalSvc.List(c.Request.Context(), accountID, role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]rentaldomain.Response, 0, len(rentals))
	for i := range rentals {
		resp = append(resp, rentalResponse(&rentals[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRental(c *gin.Context) {
	s.rentalAction(c, func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
		return s.rentalSvc.Get(c.Request.Context(), actor, rentalID)
	})
}

func (s *Server) GetRentalHistory(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rentalID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rental_id", "invalid rental id"))
		return
	}

	events, err := s.rentalSvc.History(c.Request.Context(), accountID, rentalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(events))
	for _, event := range events {
		resp = append(resp, gin.H{
			"id":               event.ID.String(),
			"action":           event.Action,
			"from_status":      event.FromStatus,
			"to_status":        event.ToStatus,
			"actor_account_id": event.ActorAccountID.String(),
			"note":             event.Note,
			"created_at":       event.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveRental(c *gin.Context) {
	s.rentalAction(c, func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
		return s.rentalSvc.Approve(c.Request.Context(), actor, rentalID)
	})
}

func (s *Server) RejectRental(c *gin.Context) {
	s.rentalAction(c, func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
		return s.rentalSvc.Reject(c.Request.Context(), actor, rentalID)
	})
}

func (s *Server) RenewRental(c *gin.Context) {
	s.rentalAction(c, func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
		return s.rentalSvc.Renew(c.Request.Context(), actor, rentalID)
	})
}

func (s *Server) CancelRental(c *gin.Context) {
	s.rentalAction(c, func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error) {
		return s.rentalSvc.Cancel(c.Request.Context(), actor, rentalID)
	})
}

func (s *Server) SetRentalAutoRenewal(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rentalID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rental_id", "invalid rental id"))
		return
	}

	var req autoRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "invalid_enabled", "enabled must be a boolean"))
		return
	}

	if err := s.rentalSvc.SetAutoRenewal(c.Request.Context(), accountID, rentalID, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"auto_renewal": *req.Enabled}})
}

// rentalAction handles the shared shape of the rental transition endpoints:
// parse the id, run one service call, render the updated rental.
func (s *Server) rentalAction(c *gin.Context, fn func(actor, rentalID snowflake.ID) (*rentaldomain.SiteSlotRental, error)) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rentalID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_rental_id", "invalid rental id"))
		return
	}

	updated, err := fn(accountID, rentalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rentalResponse(updated)})
}

func rentalResponse(r *rentaldomain.SiteSlotRental) rentaldomain.Response {
	return rentaldomain.Response{
		ID:                r.ID.String(),
		OwnerAccountID:    r.OwnerAccountID.String(),
		TenantAccountID:   r.TenantAccountID.String(),
		SiteID:            r.SiteID.String(),
		SlotsCount:        r.SlotsCount,
		SlotsUsed:         r.SlotsUsed,
		PricePerSlotCents: r.PricePerSlotCents,
		Status:            string(r.Status),
		AutoRenewal:       r.AutoRenewal,
		ExpiresAt:         r.ExpiresAt,
		CreatedAt:         r.CreatedAt,
	}
}
