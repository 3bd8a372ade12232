package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/textmatch"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemAlias is a learned mapping from normalized receipt text (or a store
// line code) to an inventory item, scoped to a business and a physical store
// location. The same text may denote different products at different stores,
// so aliases are never looked up globally.
type ItemAlias struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:40;uniqueIndex:idx_alias_key" json:"business_id"`
	GooglePlaceId   string          `gorm:"size:128;uniqueIndex:idx_alias_key" json:"google_place_id"`
	AliasText       string          `gorm:"size:255;uniqueIndex:idx_alias_key" json:"alias_text"`
	InventoryItemId int             `gorm:"index:idx_alias_item" json:"inventory_item_id"`
	Confidence      MatchConfidence `gorm:"size:16" json:"confidence"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AliasUpsertArgs is a fully-normalized upsert for one alias row. The
// composite key (business, place, text) is immutable; a conflict only moves
// the item link and confidence.
type AliasUpsertArgs struct {
	BusinessId      string
	GooglePlaceId   string
	AliasText       string
	InventoryItemId int
	Confidence      MatchConfidence
}

// BuildAliasUpsertArgs prepares the upsert for a human-confirmed match at a
// place. Returns nil when there is no place id or the text normalizes to
// nothing. Callers invoke this once for the raw line text and, when a
// distinct store line code exists, a second time for the code, so future
// lookups can match on whichever signal is present.
func BuildAliasUpsertArgs(businessId string, googlePlaceId string, inventoryItemId int, rawText string, confidence *MatchConfidence) *AliasUpsertArgs {
	if googlePlaceId == "" {
		return nil
	}
	aliasText := textmatch.Normalize(rawText)
	if aliasText == "" {
		return nil
	}
	conf := MatchConfidenceHigh
	if confidence != nil {
		conf = *confidence
	}
	return &AliasUpsertArgs{
		BusinessId:      businessId,
		GooglePlaceId:   googlePlaceId,
		AliasText:       aliasText,
		InventoryItemId: inventoryItemId,
		Confidence:      conf,
	}
}

// AliasStore reads and writes per-business, per-place aliases.
type AliasStore struct {
	db *gorm.DB
}

func NewAliasStore(db *gorm.DB) *AliasStore {
	return &AliasStore{db: db}
}

func (s *AliasStore) FindPlaceAliasMatch(ctx context.Context, businessId string, googlePlaceId string, searchText string) (*MatchCandidate, error) {
	return s.findAlias(ctx, businessId, googlePlaceId, textmatch.Normalize(searchText), MatchSourcePlaceAlias)
}

func (s *AliasStore) FindPlaceCodeAliasMatch(ctx context.Context, businessId string, googlePlaceId string, lineCode string) (*MatchCandidate, error) {
	return s.findAlias(ctx, businessId, googlePlaceId, textmatch.Normalize(lineCode), MatchSourcePlaceCodeAlias)
}

func (s *AliasStore) findAlias(ctx context.Context, businessId string, googlePlaceId string, aliasText string, source MatchSource) (*MatchCandidate, error) {
	if googlePlaceId == "" || aliasText == "" {
		return nil, nil
	}

	var row struct {
		InventoryItemId int
		Confidence      MatchConfidence
		ItemName        string
	}
	err := s.db.WithContext(ctx).
		Model(&ItemAlias{}).
		Select("item_aliases.inventory_item_id, item_aliases.confidence, inventory_items.name AS item_name").
		Joins("JOIN inventory_items ON inventory_items.id = item_aliases.inventory_item_id").
		Where("item_aliases.business_id = ? AND item_aliases.google_place_id = ? AND item_aliases.alias_text = ?",
			businessId, googlePlaceId, aliasText).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	score := 1.0
	confidence := row.Confidence
	if confidence == "" {
		confidence = MatchConfidenceHigh
	}
	return &MatchCandidate{
		InventoryItemId: row.InventoryItemId,
		ItemName:        row.ItemName,
		Score:           score,
		Confidence:      confidence,
		MatchSource:     source,
	}, nil
}

// UpsertAlias applies prepared args. Concurrent upserts for the same key are
// commutative: last writer wins on item id and confidence, and both writers
// are asserting the same human-confirmed fact.
func (s *AliasStore) UpsertAlias(ctx context.Context, args *AliasUpsertArgs) error {
	if args == nil {
		return nil
	}
	alias := ItemAlias{
		BusinessId:      args.BusinessId,
		GooglePlaceId:   args.GooglePlaceId,
		AliasText:       args.AliasText,
		InventoryItemId: args.InventoryItemId,
		Confidence:      args.Confidence,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "business_id"},
				{Name: "google_place_id"},
				{Name: "alias_text"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"inventory_item_id", "confidence", "updated_at"}),
		}).
		Create(&alias).Error
}
