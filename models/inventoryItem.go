package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/textmatch"
	"gorm.io/gorm"
)

type InventoryItem struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:40;index:idx_items_business" json:"business_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Sku        string    `gorm:"size:64" json:"sku"`
	Unit       string    `gorm:"size:32" json:"unit"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ItemSearchStore is the fuzzy candidate source: ranked bigram-dice matches
// of a search string against the business's item names.
type ItemSearchStore struct {
	db *gorm.DB
}

func NewItemSearchStore(db *gorm.DB) *ItemSearchStore {
	return &ItemSearchStore{db: db}
}

// candidateFetchLimit caps how many item rows a single search pulls in for
// scoring. Small-business catalogs stay well under it.
const candidateFetchLimit = 500

func (s *ItemSearchStore) MatchTextCandidates(ctx context.Context, businessId string, searchText string) ([]MatchCandidate, error) {
	normalized := textmatch.Normalize(searchText)
	if normalized == "" {
		return nil, nil
	}

	baseQuery := func() *gorm.DB {
		return s.db.WithContext(ctx).
			Model(&InventoryItem{}).
			Where("business_id = ? AND is_active = ?", businessId, true)
	}

	// Narrow the scored set with a per-token LIKE; fall back to the full
	// (capped) catalog when nothing contains a token, so transposed
	// characters still get a chance at a fuzzy hit.
	tokens := strings.Fields(normalized)
	likeConds := make([]string, 0, len(tokens))
	likeArgs := make([]interface{}, 0, len(tokens))
	for _, tok := range tokens {
		likeConds = append(likeConds, "LOWER(name) LIKE ?")
		likeArgs = append(likeArgs, "%"+tok+"%")
	}

	var items []InventoryItem
	if err := baseQuery().
		Where(strings.Join(likeConds, " OR "), likeArgs...).
		Limit(candidateFetchLimit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if err := baseQuery().Limit(candidateFetchLimit).Find(&items).Error; err != nil {
			return nil, err
		}
	}

	candidates := make([]MatchCandidate, 0, len(items))
	for _, item := range items {
		normalizedName := textmatch.Normalize(item.Name)
		if normalizedName == "" {
			continue
		}
		score := textmatch.DiceSimilarity(normalized, item.Name)
		if normalizedName == normalized {
			score = 1
		}
		confidence := ConfidenceForScore(score)
		if confidence == MatchConfidenceNone {
			continue
		}
		candidates = append(candidates, MatchCandidate{
			InventoryItemId: item.ID,
			ItemName:        item.Name,
			Score:           score,
			Confidence:      confidence,
			MatchSource:     MatchSourceFuzzy,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > config.SearchLimit {
		candidates = candidates[:config.SearchLimit]
	}
	return candidates, nil
}
