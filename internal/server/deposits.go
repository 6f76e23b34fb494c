package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
)

type depositRequest struct {
	AmountCents int64  `json:"amount_cents"`
	PromoCode   string `json:"promo_code"`
}

func (s *Server) Deposit(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.Deposit(c.Request.Context(), referraldomain.DepositRequest{
		AccountID:   accountID,
		AmountCents: req.AmountCents,
		PromoCode:   strings.TrimSpace(req.PromoCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type createPromoCodeRequest struct {
	Code               string     `json:"code"`
	BonusCents         int64      `json:"bonus_cents"`
	PartnerRewardCents int64      `json:"partner_reward_cents"`
	MinDepositCents    int64      `json:"min_deposit_cents"`
	MaxUses            int        `json:"max_uses"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

func (s *Server) CreatePromoCode(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createPromoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	code, err := s.referralSvc.CreateCode(c.Request.Context(), referraldomain.CreateCodeRequest{
		OwnerAccountID:     accountID,
		Code:               strings.TrimSpace(req.Code),
		BonusCents:         req.BonusCents,
		PartnerRewardCents: req.PartnerRewardCents,
		MinDepositCents:    req.MinDepositCents,
		MaxUses:            req.MaxUses,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": promoCodeResponse(code)})
}

func (s *Server) GetPromoCode(c *gin.Context) {
	code, err := s.referralSvc.GetCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": promoCodeResponse(code)})
}

func promoCodeResponse(code *referraldomain.PromoCode) gin.H {
	return gin.H{
		"id":                   code.ID.String(),
		"code":                 code.Code,
		"owner_account_id":     code.OwnerAccountID.String(),
		"bonus_cents":          code.BonusCents,
		"partner_reward_cents": code.PartnerRewardCents,
		"min_deposit_cents":    code.MinDepositCents,
		"max_uses":             code.MaxUses,
		"current_uses":         code.CurrentUses,
		"is_active":            code.IsActive,
		"expires_at":           code.ExpiresAt,
	}
}
