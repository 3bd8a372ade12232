package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"bitbucket.org/mmdatafocus/receipts_backend/textmatch"
	"github.com/sirupsen/logrus"
)

// AliasSource looks up learned text->item aliases scoped to a business and a
// physical store location.
type AliasSource interface {
	FindPlaceAliasMatch(ctx context.Context, businessId string, googlePlaceId string, searchText string) (*models.MatchCandidate, error)
	FindPlaceCodeAliasMatch(ctx context.Context, businessId string, googlePlaceId string, lineCode string) (*models.MatchCandidate, error)
}

// CandidateSource returns ranked fuzzy match candidates for a search string.
type CandidateSource interface {
	MatchTextCandidates(ctx context.Context, businessId string, searchText string) ([]models.MatchCandidate, error)
}

type LineMatchInput struct {
	BusinessId    string
	GooglePlaceId string
	RawText       string
	ParsedName    *string
	Profile       models.MatchProfile
}

type ResolvedMatch struct {
	MatchedItemId *int                   `json:"matched_item_id"`
	Confidence    models.MatchConfidence `json:"confidence"`
	Status        models.MatchStatus     `json:"status"`
	TopMatch      *models.MatchCandidate `json:"top_match"`
}

// LineMatchResolver cascades store-code alias -> store-text alias -> fuzzy
// search, stopping at the first hit. Alias lookups fail open: a degraded
// alias store downgrades the cascade instead of aborting it.
type LineMatchResolver struct {
	aliases    AliasSource
	candidates CandidateSource
	logger     *logrus.Logger
}

func NewLineMatchResolver(aliases AliasSource, candidates CandidateSource, logger *logrus.Logger) *LineMatchResolver {
	return &LineMatchResolver{
		aliases:    aliases,
		candidates: candidates,
		logger:     logger,
	}
}

func (r *LineMatchResolver) Resolve(ctx context.Context, input LineMatchInput) ResolvedMatch {
	var top *models.MatchCandidate

	// Store line codes are the least ambiguous signal; a code alias hit
	// short-circuits everything else. Aliases are store-specific, so without
	// a place id both alias tiers are skipped rather than searched globally.
	if code := textmatch.ExtractStoreLineCode(input.RawText); code != "" && input.GooglePlaceId != "" {
		candidate, err := r.aliases.FindPlaceCodeAliasMatch(ctx, input.BusinessId, input.GooglePlaceId, code)
		if err != nil {
			config.LogError(r.logger, "lineMatchResolver.go", "Resolve", "FindPlaceCodeAliasMatch", code, err)
		} else {
			top = candidate
		}
	}

	searchText := input.RawText
	if input.ParsedName != nil && *input.ParsedName != "" {
		searchText = *input.ParsedName
	}

	if top == nil && input.GooglePlaceId != "" {
		candidate, err := r.aliases.FindPlaceAliasMatch(ctx, input.BusinessId, input.GooglePlaceId, searchText)
		if err != nil {
			config.LogError(r.logger, "lineMatchResolver.go", "Resolve", "FindPlaceAliasMatch", searchText, err)
		} else {
			top = candidate
		}
	}

	if top == nil {
		candidates, err := r.candidates.MatchTextCandidates(ctx, input.BusinessId, searchText)
		if err != nil {
			config.LogError(r.logger, "lineMatchResolver.go", "Resolve", "MatchTextCandidates", searchText, err)
		} else if len(candidates) > 0 {
			top = &candidates[0]
		}
	}

	status := mapToStatus(top, input.Profile)

	result := ResolvedMatch{
		Confidence: models.MatchConfidenceNone,
		Status:     status,
		TopMatch:   top,
	}
	if top != nil {
		result.Confidence = top.Confidence
	}
	if status == models.MatchStatusMatched || status == models.MatchStatusSuggested {
		itemId := top.InventoryItemId
		result.MatchedItemId = &itemId
	}
	return result
}

// mapToStatus turns the top candidate into a commit decision. The receipt
// profile feeds a human-gated review screen and may surface medium-confidence
// suggestions; the shopping profile feeds a stricter commit path and treats
// medium confidence as unresolved.
func mapToStatus(top *models.MatchCandidate, profile models.MatchProfile) models.MatchStatus {
	if top == nil {
		return models.MatchStatusUnresolved
	}
	switch top.Confidence {
	case models.MatchConfidenceHigh:
		return models.MatchStatusMatched
	case models.MatchConfidenceMedium:
		if profile == models.MatchProfileReceipt {
			return models.MatchStatusSuggested
		}
	}
	return models.MatchStatusUnresolved
}
