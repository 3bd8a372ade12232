package workflow

import (
	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
)

// Eligibility is the auto-post verdict. Reason is nil only when eligible.
type Eligibility struct {
	Eligible bool                   `json:"eligible"`
	Reason   *models.AutoPostReason `json:"reason"`
}

func reject(reason models.AutoPostReason) Eligibility {
	return Eligibility{Eligible: false, Reason: &reason}
}

// EvaluateAutoPostEligibility is an ordered guard chain; the first failing
// guard wins. Any single red flag vetoes automation: financial postings get
// a conservative bias toward human review, never a weighted score.
func EvaluateAutoPostEligibility(profile *models.VendorProfile, draft *models.DocumentDraft, cfg config.TrustConfig) Eligibility {
	if profile.TrustState == models.VendorTrustStateBlocked {
		return reject(models.AutoPostReasonVendorBlocked)
	}
	if !profile.AutoPostEnabled {
		return reject(models.AutoPostReasonAutoPostDisabled)
	}

	effectiveThreshold := cfg.DefaultTrustThreshold
	if profile.TrustThresholdOverride != nil {
		effectiveThreshold = *profile.TrustThresholdOverride
	}
	if profile.TotalPosted < effectiveThreshold {
		return reject(models.AutoPostReasonBelowTrustThreshold)
	}

	if draft.ConfidenceScore < cfg.ConfidenceMin {
		return reject(models.AutoPostReasonLowConfidence)
	}
	if len(draft.AnomalyFlagList()) > 0 {
		return reject(models.AutoPostReasonAnomalyDetected)
	}

	return Eligibility{Eligible: true}
}
