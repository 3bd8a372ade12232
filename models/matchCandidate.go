package models

// MatchCandidate is a ranked suggestion linking a raw receipt line to an
// inventory item. Produced per call, never persisted.
type MatchCandidate struct {
	InventoryItemId int             `json:"inventory_item_id"`
	ItemName        string          `json:"item_name"`
	Score           float64         `json:"score"`
	Confidence      MatchConfidence `json:"confidence"`
	MatchSource     MatchSource     `json:"match_source"`
}

// Confidence band thresholds. Bands are monotone with score: a higher score
// never maps to a lower band.
const (
	matchScoreHighMin   = 0.82
	matchScoreMediumMin = 0.60
	matchScoreLowMin    = 0.35
)

func ConfidenceForScore(score float64) MatchConfidence {
	switch {
	case score >= matchScoreHighMin:
		return MatchConfidenceHigh
	case score >= matchScoreMediumMin:
		return MatchConfidenceMedium
	case score >= matchScoreLowMin:
		return MatchConfidenceLow
	default:
		return MatchConfidenceNone
	}
}
