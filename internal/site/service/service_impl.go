package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Node *snowflake.Node
	Repo sitedomain.Repository
}

type siteService struct {
	db   *gorm.DB
	log  *zap.Logger
	node *snowflake.Node
	repo sitedomain.Repository
}

func New(p Params) sitedomain.Service {
	return &siteService{
		db:   p.DB,
		log:  p.Log.Named("site.service"),
		node: p.Node,
		repo: p.Repo,
	}
}

func (s *siteService) Get(ctx context.Context, siteID snowflake.ID) (*sitedomain.Site, error) {
	site, err := s.repo.FindByID(ctx, s.db, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, sitedomain.ErrSiteNotFound
	}
	return site, nil
}

func (s *siteService) PriceFor(ctx context.Context, siteID snowflake.ID, variant string) (int64, error) {
	site, err := s.Get(ctx, siteID)
	if err != nil {
		return 0, err
	}
	if !site.Active {
		return 0, sitedomain.ErrSiteInactive
	}

	switch contentdomain.Variant(variant) {
	case contentdomain.VariantLink:
		return site.LinkPriceCents, nil
	case contentdomain.VariantArticle:
		return site.ArticlePriceCents, nil
	default:
		return 0, sitedomain.ErrInvalidVariant
	}
}

func (s *siteService) Create(ctx context.Context, req sitedomain.CreateRequest) (*sitedomain.Site, error) {
	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if domain == "" {
		return nil, sitedomain.ErrInvalidDomain
	}
	if req.LinkPriceCents <= 0 || req.ArticlePriceCents <= 0 || req.SlotPriceCents < 0 {
		return nil, sitedomain.ErrInvalidPrice
	}

	now := s.db.NowFunc()
	site := &sitedomain.Site{
		ID:                s.node.Generate(),
		OwnerAccountID:    req.OwnerAccountID,
		Domain:            domain,
		LinkPriceCents:    req.LinkPriceCents,
		ArticlePriceCents: req.ArticlePriceCents,
		SlotPriceCents:    req.SlotPriceCents,
		SlotsCount:        req.SlotsCount,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, site); err != nil {
		return nil, err
	}

	s.log.Info("site created",
		zap.String("site_id", site.ID.String()),
		zap.String("domain", site.Domain))

	return site, nil
}
