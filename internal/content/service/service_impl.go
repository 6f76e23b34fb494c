package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Node *snowflake.Node
	Repo contentdomain.Repository
}

type contentService struct {
	db   *gorm.DB
	log  *zap.Logger
	node *snowflake.Node
	repo contentdomain.Repository
}

func New(p Params) contentdomain.Service {
	return &contentService{
		db:   p.DB,
		log:  p.Log.Named("content.service"),
		node: p.Node,
		repo: p.Repo,
	}
}

func (s *contentService) Reserve(ctx context.Context, tx *gorm.DB, contentID, ownerAccountID snowflake.ID) (*contentdomain.Reservation, error) {
	db := tx
	if db == nil {
		db = s.db
	}

	item, err := s.repo.FindByID(ctx, db, contentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, contentdomain.ErrNotFound
	}
	if item.OwnerAccountID != ownerAccountID {
		return nil, contentdomain.ErrNotOwned
	}

	ok, err := s.repo.ConsumeUse(ctx, db, contentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, contentdomain.ErrExhausted
	}

	return &contentdomain.Reservation{
		ContentID: item.ID,
		Variant:   item.Variant,
	}, nil
}

func (s *contentService) Release(ctx context.Context, tx *gorm.DB, reservation *contentdomain.Reservation) error {
	db := tx
	if db == nil {
		db = s.db
	}
	return s.repo.ReturnUse(ctx, db, reservation.ContentID)
}

func (s *contentService) Create(ctx context.Context, req contentdomain.CreateRequest) (*contentdomain.ContentItem, error) {
	if req.Variant != contentdomain.VariantLink && req.Variant != contentdomain.VariantArticle {
		return nil, contentdomain.ErrInvalidVariant
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, contentdomain.ErrInvalidTitle
	}

	// Zero is a valid limit; the item exists but is exhausted from the start.
	limit := contentdomain.DefaultArticleUsageLimit
	if req.UsageLimit != nil {
		if *req.UsageLimit < 0 {
			return nil, contentdomain.ErrInvalidLimit
		}
		limit = *req.UsageLimit
	}

	now := s.db.NowFunc()
	item := &contentdomain.ContentItem{
		ID:             s.node.Generate(),
		OwnerAccountID: req.OwnerAccountID,
		Variant:        req.Variant,
		Title:          strings.TrimSpace(req.Title),
		Body:           req.Body,
		TargetURL:      req.TargetURL,
		UsageLimit:     limit,
		UsageCount:     0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.log.Info("content created",
		zap.String("content_id", item.ID.String()),
		zap.String("variant", string(item.Variant)),
		zap.Int("usage_limit", item.UsageLimit))

	return item, nil
}

func (s *contentService) Get(ctx context.Context, contentID snowflake.ID) (*contentdomain.ContentItem, error) {
	item, err := s.repo.FindByID(ctx, s.db, contentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, contentdomain.ErrNotFound
	}
	return item, nil
}
