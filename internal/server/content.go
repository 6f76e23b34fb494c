package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
)

type createContentRequest struct {
	Variant    string `json:"variant"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	TargetURL  string `json:"target_url"`
	UsageLimit *int   `json:"usage_limit"`
}

func (s *Server) CreateContent(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.contentSvc.Create(c.Request.Context(), contentdomain.CreateRequest{
		OwnerAccountID: accountID,
		Variant:        contentdomain.Variant(strings.TrimSpace(req.Variant)),
		Title:          strings.TrimSpace(req.Title),
		Body:           req.Body,
		TargetURL:      strings.TrimSpace(req.TargetURL),
		UsageLimit:     req.UsageLimit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": contentResponse(item)})
}

func (s *Server) GetContent(c *gin.Context) {
	accountID, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	contentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_content_id", "invalid content id"))
		return
	}

	item, err := s.contentSvc.Get(c.Request.Context(), contentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if item.OwnerAccountID != accountID {
		AbortWithError(c, contentdomain.ErrNotOwned)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contentResponse(item)})
}

func contentResponse(item *contentdomain.ContentItem) gin.H {
	return gin.H{
		"id":               item.ID.String(),
		"owner_account_id": item.OwnerAccountID.String(),
		"variant":          item.Variant,
		"title":            item.Title,
		"body":             item.Body,
		"target_url":       item.TargetURL,
		"usage_limit":      item.UsageLimit,
		"usage_count":      item.UsageCount,
		"created_at":       item.CreatedAt,
	}
}
