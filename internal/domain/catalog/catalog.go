package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Service is one entry of the clinical service catalog. Price is the
// catalog default; per-item overrides must stay within PriceBand of it.
type Service struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	ServiceCode string `gorm:"column:service_code;type:varchar(30);uniqueIndex;not null"`
	ServiceName string `gorm:"column:service_name;type:varchar(255);not null"`

	Price               int64 `gorm:"column:price;not null"`
	DefaultDurationMins int   `gorm:"column:default_duration_mins;not null;default:30"`

	IsActive bool `gorm:"column:is_active;default:true;index"`

	// RequiresPrerequisite marks services that cannot be booked until a
	// clinical prerequisite is met; the approval cascade parks their items
	// in waiting_for_prerequisite.
	RequiresPrerequisite bool `gorm:"column:requires_prerequisite;default:false"`
}

func (Service) TableName() string {
	return "catalog.services"
}

// PriceBand is the allowed override fraction around the catalog default.
// A requested price outside [default*(1-PriceBand), default*(1+PriceBand)]
// is rejected.
const PriceBand = 0.5

// PriceWithinBand reports whether requested stays within PriceBand of the
// catalog default.
func (s *Service) PriceWithinBand(requested int64) bool {
	min := int64(float64(s.Price) * (1 - PriceBand))
	max := int64(float64(s.Price) * (1 + PriceBand))
	return requested >= min && requested <= max
}
