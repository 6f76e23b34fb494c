package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) CreateAccount(c *gin.Context) {
	account, err := s.ledgerSvc.CreateAccount(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"account_id":    account.ID.String(),
		"balance_cents": account.BalanceCents,
	}})
}

func (s *Server) GetBalance(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.History(c.Request.Context(), accountID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDiscountTiers(c *gin.Context) {
	resp, err := s.discountSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
