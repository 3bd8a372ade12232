package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentDraft is a parsed receipt/invoice moving through
// received -> parsing -> draft -> pending_review -> posted|rejected.
// Parsed numeric fields keep whatever shape the OCR layer produced, so reads
// coerce leniently instead of trusting the column types.
type DocumentDraft struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	BusinessId       string              `gorm:"size:40;index:idx_drafts_business" json:"business_id"`
	VendorProfileId  *int                `gorm:"index:idx_drafts_vendor" json:"vendor_profile_id"`
	Status           DraftStatus         `gorm:"size:24;index:idx_drafts_status" json:"status"`
	ParsedVendorName string              `gorm:"size:255" json:"parsed_vendor_name"`
	ParsedDate       *time.Time          `json:"parsed_date"`
	ParsedTotal      decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"parsed_total"`
	ParsedTax        decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"parsed_tax"`
	ParsedLineItems  datatypes.JSON      `json:"parsed_line_items"`
	ConfidenceScore  float64             `json:"confidence_score"`
	AnomalyFlags     datatypes.JSON      `json:"anomaly_flags"`
	PostedAt         *time.Time          `json:"posted_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ParsedLineItem is one OCR'd receipt line. Amounts stay loosely typed
// (string or number depending on parser version); coerce on read.
type ParsedLineItem struct {
	RawText         string `json:"raw_text"`
	Description     string `json:"description,omitempty"`
	Quantity        any    `json:"quantity,omitempty"`
	UnitPrice       any    `json:"unit_price,omitempty"`
	Amount          any    `json:"amount,omitempty"`
	InventoryItemId *int   `json:"inventory_item_id,omitempty"`
	MatchStatus     string `json:"match_status,omitempty"`
}

// LineItems decodes the stored line item blob. Malformed rows decode to
// their zero value rather than failing the document.
func (d *DocumentDraft) LineItems() []ParsedLineItem {
	if len(d.ParsedLineItems) == 0 {
		return nil
	}
	var items []ParsedLineItem
	if err := json.Unmarshal(d.ParsedLineItems, &items); err != nil {
		return nil
	}
	return items
}

func (d *DocumentDraft) LineItemCount() int {
	return len(d.LineItems())
}

// AnomalyFlagList validates flags on read; unknown values from schema drift
// are dropped.
func (d *DocumentDraft) AnomalyFlagList() []AnomalyFlag {
	if len(d.AnomalyFlags) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(d.AnomalyFlags, &raw); err != nil {
		return nil
	}
	var flags []AnomalyFlag
	for _, s := range raw {
		if flag, ok := ParseAnomalyFlag(s); ok {
			flags = append(flags, flag)
		}
	}
	return utils.UniqueSlice(flags)
}

// ParsedTotalFloat returns the parsed total as float64, false when absent.
func (d *DocumentDraft) ParsedTotalFloat() (float64, bool) {
	if !d.ParsedTotal.Valid {
		return 0, false
	}
	return utils.CoerceFloat(d.ParsedTotal.Decimal)
}

// DraftUpdate is a partial update; nil fields are left untouched.
type DraftUpdate struct {
	Status       *DraftStatus
	AnomalyFlags []AnomalyFlag
}

type DraftStore struct {
	db *gorm.DB
}

func NewDraftStore(db *gorm.DB) *DraftStore {
	return &DraftStore{db: db}
}

func (s *DraftStore) FindDraft(ctx context.Context, businessId string, draftId int) (*DocumentDraft, error) {
	var draft DocumentDraft
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, draftId).
		First(&draft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

// ListPostedDrafts returns the vendor's posted documents since the given
// time, most recent first, capped at limit.
func (s *DraftStore) ListPostedDrafts(ctx context.Context, businessId string, vendorProfileId int, since time.Time, limit int) ([]DocumentDraft, error) {
	var drafts []DocumentDraft
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND vendor_profile_id = ? AND status = ? AND posted_at >= ?",
			businessId, vendorProfileId, DraftStatusPosted, since).
		Order("posted_at DESC").
		Limit(limit).
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *DraftStore) UpdateDraft(ctx context.Context, draftId int, update DraftUpdate) error {
	fields := map[string]interface{}{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.AnomalyFlags != nil {
		deduped := utils.UniqueSlice(update.AnomalyFlags)
		if deduped == nil {
			deduped = []AnomalyFlag{}
		}
		encoded, err := json.Marshal(deduped)
		if err != nil {
			return err
		}
		fields["anomaly_flags"] = datatypes.JSON(encoded)
	}
	if len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&DocumentDraft{}).
		Where("id = ?", draftId).
		Updates(fields).Error
}
