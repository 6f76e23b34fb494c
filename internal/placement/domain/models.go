// Package domain contains the placement models. A placement is the paid
// occupancy of content on a partner site; its lifecycle is driven by the
// purchase saga, the renewal engine and the expiry sweep.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the placement lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlaced    Status = "placed"
	StatusFailed    Status = "failed"
	StatusScheduled Status = "scheduled"
	StatusExpired   Status = "expired"
)

// Placement is one purchased placement of content on a site. ExpiresAt is nil
// for article placements, which are permanent.
type Placement struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	AccountID       snowflake.ID   `gorm:"not null;index"`
	SiteID          snowflake.ID   `gorm:"not null;index"`
	Variant         string         `gorm:"type:text;not null"`
	ContentIDs      datatypes.JSON `gorm:"not null"`
	Status          Status         `gorm:"type:text;not null;index"`
	GrossPriceCents int64          `gorm:"not null"`
	DiscountPercent int16          `gorm:"type:smallint;not null;default:0"`
	FinalPriceCents int64          `gorm:"not null"`
	AutoRenewal     bool           `gorm:"not null;default:false"`
	RenewalCount    int            `gorm:"not null;default:0"`
	ExternalPostID  string         `gorm:"type:text"`
	ScheduledAt     *time.Time     `gorm:"index"`
	PurchasedAt     time.Time      `gorm:"not null"`
	LastRenewedAt   *time.Time     `gorm:""`
	ExpiresAt       *time.Time     `gorm:"index"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Placement) TableName() string { return "placements" }

// ContentIDList decodes the stored content id array.
func (p *Placement) ContentIDList() ([]snowflake.ID, error) {
	var raw []string
	if err := json.Unmarshal(p.ContentIDs, &raw); err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, s := range raw {
		id, err := snowflake.ParseString(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EncodeContentIDs stores the content id array as JSON.
func EncodeContentIDs(ids []snowflake.ID) (datatypes.JSON, error) {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
