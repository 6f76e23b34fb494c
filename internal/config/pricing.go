package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig holds operator-tunable billing knobs. It is hot-reloadable so
// placement periods and renewal windows can change without a restart.
type PricingConfig struct {
	PlacementPeriodDays  int   `mapstructure:"placementPeriodDays"`
	RentalPeriodDays     int   `mapstructure:"rentalPeriodDays"`
	RenewalLookaheadDays int   `mapstructure:"renewalLookaheadDays"`
	GatewayTimeoutSecs   int   `mapstructure:"gatewayTimeoutSecs"`
	DefaultLinkCents     int64 `mapstructure:"defaultLinkCents"`
	DefaultArticleCents  int64 `mapstructure:"defaultArticleCents"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		PlacementPeriodDays:  30,
		RentalPeriodDays:     30,
		RenewalLookaheadDays: 3,
		GatewayTimeoutSecs:   15,
		DefaultLinkCents:     2500,
		DefaultArticleCents:  5000,
	}
}

func (c PricingConfig) PlacementPeriod() time.Duration {
	return time.Duration(c.PlacementPeriodDays) * 24 * time.Hour
}

func (c PricingConfig) RentalPeriod() time.Duration {
	return time.Duration(c.RentalPeriodDays) * 24 * time.Hour
}

func (c PricingConfig) RenewalLookahead() time.Duration {
	return time.Duration(c.RenewalLookaheadDays) * 24 * time.Hour
}

func (c PricingConfig) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSecs) * time.Second
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/placehub/config")
	v.AddConfigPath("/etc/placehub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLACEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.placementPeriodDays", defaults.PlacementPeriodDays)
	v.SetDefault("pricing.rentalPeriodDays", defaults.RentalPeriodDays)
	v.SetDefault("pricing.renewalLookaheadDays", defaults.RenewalLookaheadDays)
	v.SetDefault("pricing.gatewayTimeoutSecs", defaults.GatewayTimeoutSecs)
	v.SetDefault("pricing.defaultLinkCents", defaults.DefaultLinkCents)
	v.SetDefault("pricing.defaultArticleCents", defaults.DefaultArticleCents)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

// NewStaticPricingHolder wraps a fixed config, used by tests.
func NewStaticPricingHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.PlacementPeriodDays <= 0 {
		return errors.New("pricing.placementPeriodDays must be positive")
	}
	if cfg.RentalPeriodDays <= 0 {
		return errors.New("pricing.rentalPeriodDays must be positive")
	}
	if cfg.RenewalLookaheadDays < 0 {
		return errors.New("pricing.renewalLookaheadDays cannot be negative")
	}
	if cfg.GatewayTimeoutSecs <= 0 {
		return errors.New("pricing.gatewayTimeoutSecs must be positive")
	}
	return nil
}
