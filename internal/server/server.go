package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/placehub/placehub/internal/config"
	"github.com/placehub/placehub/internal/content"
	contentdomain "github.com/placehub/placehub/internal/content/domain"
	"github.com/placehub/placehub/internal/discount"
	discountdomain "github.com/placehub/placehub/internal/discount/domain"
	"github.com/placehub/placehub/internal/ledger"
	ledgerdomain "github.com/placehub/placehub/internal/ledger/domain"
	"github.com/placehub/placehub/internal/notify"
	"github.com/placehub/placehub/internal/observability"
	obsmiddleware "github.com/placehub/placehub/internal/observability/logger"
	obstracing "github.com/placehub/placehub/internal/observability/tracing"
	"github.com/placehub/placehub/internal/placement"
	placementdomain "github.com/placehub/placehub/internal/placement/domain"
	"github.com/placehub/placehub/internal/publish"
	"github.com/placehub/placehub/internal/ratelimit"
	"github.com/placehub/placehub/internal/referral"
	referraldomain "github.com/placehub/placehub/internal/referral/domain"
	"github.com/placehub/placehub/internal/rental"
	rentaldomain "github.com/placehub/placehub/internal/rental/domain"
	"github.com/placehub/placehub/internal/site"
	sitedomain "github.com/placehub/placehub/internal/site/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	ledger.Module,
	discount.Module,
	content.Module,
	site.Module,
	publish.Module,
	notify.Module,
	placement.Module,
	referral.Module,
	rental.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	ledgerSvc       ledgerdomain.Service
	discountSvc     discountdomain.Service
	contentSvc      contentdomain.Service
	siteSvc         sitedomain.Service
	placementSvc    placementdomain.Service
	rentalSvc       rentaldomain.Service
	referralSvc     referraldomain.Service
	purchaseLimiter *ratelimit.PurchaseLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	LedgerSvc    ledgerdomain.Service
	DiscountSvc  discountdomain.Service
	ContentSvc   contentdomain.Service
	SiteSvc      sitedomain.Service
	PlacementSvc placementdomain.Service
	RentalSvc    rentaldomain.Service
	ReferralSvc  referraldomain.Service

	PurchaseLimiter *ratelimit.PurchaseLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		ledgerSvc:       p.LedgerSvc,
		discountSvc:     p.DiscountSvc,
		contentSvc:      p.ContentSvc,
		siteSvc:         p.SiteSvc,
		placementSvc:    p.PlacementSvc,
		rentalSvc:       p.RentalSvc,
		referralSvc:     p.ReferralSvc,
		purchaseLimiter: p.PurchaseLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerLegacyRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Accounts & Wallet --------
	v1.POST("/accounts", s.CreateAccount)
	v1.GET("/accounts/balance", s.ActorRequired(), s.GetBalance)
	v1.GET("/accounts/transactions", s.ActorRequired(), s.ListTransactions)
	v1.POST("/deposits", s.ActorRequired(), s.Deposit)

	// -------- Discount Tiers --------
	v1.GET("/discount-tiers", s.ListDiscountTiers)

	// -------- Content Inventory --------
	v1.POST("/content", s.ActorRequired(), s.CreateContent)
	v1.GET("/content/:id", s.ActorRequired(), s.GetContent)

	// -------- Sites --------
	v1.POST("/sites", s.ActorRequired(), s.CreateSite)
	v1.GET("/sites/:id", s.GetSite)

	// -------- Placements --------
	v1.POST("/purchases", s.ActorRequired(), s.PurchaseRateLimit(), s.CreatePurchase)
	v1.GET("/placements", s.ActorRequired(), s.ListPlacements)
	v1.GET("/placements/:id", s.ActorRequired(), s.GetPlacement)
	v1.DELETE("/placements/:id", s.ActorRequired(), s.DeletePlacement)
	v1.POST("/placements/:id/renew", s.ActorRequired(), s.RenewPlacement)
	v1.PATCH("/placements/:id/auto-renewal", s.ActorRequired(), s.SetPlacementAutoRenewal)

	// -------- Slot Rentals --------
	v1.POST("/rentals", s.ActorRequired(), s.CreateRental)
	v1.GET("/rentals", s.ActorRequired(), s.ListRentals)
	v1.GET("/rentals/:id", s.ActorRequired(), s.GetRental)
	v1.GET("/rentals/:id/history", s.ActorRequired(), s.GetRentalHistory)
	v1.POST("/rentals/:id/approve", s.ActorRequired(), s.ApproveRental)
	v1.POST("/rentals/:id/reject", s.ActorRequired(), s.RejectRental)
	v1.POST("/rentals/:id/renew", s.ActorRequired(), s.RenewRental)
	v1.DELETE("/rentals/:id", s.ActorRequired(), s.CancelRental)
	v1.PATCH("/rentals/:id/auto-renewal", s.ActorRequired(), s.SetRentalAutoRenewal)

	// -------- Promo Codes --------
	v1.POST("/promo-codes", s.ActorRequired(), s.CreatePromoCode)
	v1.GET("/promo-codes/:code", s.GetPromoCode)
}
