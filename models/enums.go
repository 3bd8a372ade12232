package models

import "errors"

type MatchConfidence string

const (
	MatchConfidenceHigh   MatchConfidence = "high"
	MatchConfidenceMedium MatchConfidence = "medium"
	MatchConfidenceLow    MatchConfidence = "low"
	MatchConfidenceNone   MatchConfidence = "none"
)

func (c *MatchConfidence) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*c = MatchConfidenceHigh
	case "medium":
		*c = MatchConfidenceMedium
	case "low":
		*c = MatchConfidenceLow
	case "none":
		*c = MatchConfidenceNone
	default:
		return errors.New("invalid match confidence")
	}
	return nil
}

type MatchSource string

const (
	MatchSourcePlaceCodeAlias MatchSource = "receipt_place_code_alias"
	MatchSourcePlaceAlias     MatchSource = "receipt_place_alias"
	MatchSourceFuzzy          MatchSource = "fuzzy_match"
)

type MatchStatus string

const (
	MatchStatusMatched    MatchStatus = "matched"
	MatchStatusSuggested  MatchStatus = "suggested"
	MatchStatusUnresolved MatchStatus = "unresolved"
)

// MatchProfile selects the commit path a resolved line feeds into. Receipt
// review is a human-gated screen and may surface medium-confidence
// suggestions; the shopping-session path is stricter.
type MatchProfile string

const (
	MatchProfileReceipt  MatchProfile = "receipt"
	MatchProfileShopping MatchProfile = "shopping"
)

func (p *MatchProfile) UnmarshalText(b []byte) error {
	switch string(b) {
	case "receipt":
		*p = MatchProfileReceipt
	case "shopping":
		*p = MatchProfileShopping
	default:
		return errors.New("invalid match profile")
	}
	return nil
}

type VendorTrustState string

const (
	VendorTrustStateUnverified VendorTrustState = "unverified"
	VendorTrustStateLearning   VendorTrustState = "learning"
	VendorTrustStateTrusted    VendorTrustState = "trusted"
	VendorTrustStateBlocked    VendorTrustState = "blocked"
)

type DraftStatus string

const (
	DraftStatusReceived      DraftStatus = "received"
	DraftStatusParsing       DraftStatus = "parsing"
	DraftStatusDraft         DraftStatus = "draft"
	DraftStatusPendingReview DraftStatus = "pending_review"
	DraftStatusPosted        DraftStatus = "posted"
	DraftStatusRejected      DraftStatus = "rejected"
)

type AnomalyFlag string

const (
	AnomalyFlagLargeTotal         AnomalyFlag = "large_total"
	AnomalyFlagNewFormat          AnomalyFlag = "new_format"
	AnomalyFlagVendorNameMismatch AnomalyFlag = "vendor_name_mismatch"
	AnomalyFlagUnusualLineCount   AnomalyFlag = "unusual_line_count"
	AnomalyFlagDuplicateSuspected AnomalyFlag = "duplicate_suspected"
)

// ParseAnomalyFlag validates a stored flag on read. Flags persist as JSON and
// an unknown value means schema drift, not a new anomaly.
func ParseAnomalyFlag(s string) (AnomalyFlag, bool) {
	switch AnomalyFlag(s) {
	case AnomalyFlagLargeTotal,
		AnomalyFlagNewFormat,
		AnomalyFlagVendorNameMismatch,
		AnomalyFlagUnusualLineCount,
		AnomalyFlagDuplicateSuspected:
		return AnomalyFlag(s), true
	}
	return "", false
}

// AutoPostReason explains why an auto-post attempt did not post. Expected
// business-rule outcomes, never errors.
type AutoPostReason string

const (
	AutoPostReasonDraftNotFound       AutoPostReason = "draft_not_found"
	AutoPostReasonVendorUnlinked      AutoPostReason = "vendor_unlinked"
	AutoPostReasonVendorBlocked       AutoPostReason = "vendor_blocked"
	AutoPostReasonAutoPostDisabled    AutoPostReason = "auto_post_disabled"
	AutoPostReasonBelowTrustThreshold AutoPostReason = "below_trust_threshold"
	AutoPostReasonLowConfidence       AutoPostReason = "low_confidence"
	AutoPostReasonAnomalyDetected     AutoPostReason = "anomaly_detected"
)
