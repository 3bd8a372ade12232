package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// VendorProfile tracks the trust lifecycle of one vendor for one business.
// trust_state and total_posted move as documents are posted or reviewed;
// the decision layer only reads them.
type VendorProfile struct {
	ID                     int              `gorm:"primary_key" json:"id"`
	BusinessId             string           `gorm:"size:40;index:idx_vendor_business" json:"business_id"`
	VendorName             string           `gorm:"size:255" json:"vendor_name"`
	TrustState             VendorTrustState `gorm:"size:16;default:unverified" json:"trust_state"`
	TotalPosted            int              `gorm:"default:0" json:"total_posted"`
	TrustThresholdOverride *int             `json:"trust_threshold_override"`
	AutoPostEnabled        bool             `gorm:"default:false" json:"auto_post_enabled"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

type VendorProfileStore struct {
	db *gorm.DB
}

func NewVendorProfileStore(db *gorm.DB) *VendorProfileStore {
	return &VendorProfileStore{db: db}
}

// FindVendorProfile returns nil without error when the vendor does not
// exist; a missing vendor is a business-rule outcome, not a failure.
func (s *VendorProfileStore) FindVendorProfile(ctx context.Context, businessId string, vendorProfileId int) (*VendorProfile, error) {
	var profile VendorProfile
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, vendorProfileId).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
