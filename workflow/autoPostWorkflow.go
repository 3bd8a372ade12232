package workflow

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"bitbucket.org/mmdatafocus/receipts_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DraftStore is the draft side of the persistence-owning caller.
type DraftStore interface {
	FindDraft(ctx context.Context, businessId string, draftId int) (*models.DocumentDraft, error)
	UpdateDraft(ctx context.Context, draftId int, update models.DraftUpdate) error
}

// PostingDelegate commits an eligible draft to the ledger. Its errors are
// hard failures and propagate uncaught; a failed ledger write must never be
// reinterpreted as ineligibility.
type PostingDelegate interface {
	PostDraft(ctx context.Context, businessId string, draftId int, actingUserId int, autoPosted bool) (*models.PostResult, error)
}

type AttemptAutoPostResult struct {
	AutoPosted   bool                   `json:"auto_posted"`
	Reason       *models.AutoPostReason `json:"reason"`
	AnomalyFlags []models.AnomalyFlag   `json:"anomaly_flags"`
	PostResult   *models.PostResult     `json:"post_result,omitempty"`
}

// AutoPostWorkflow sequences anomaly detection, the eligibility gate and the
// posting delegate for one draft. A draft that cannot be auto-posted always
// lands back in pending_review with a diagnostic reason.
type AutoPostWorkflow struct {
	drafts   DraftStore
	vendors  VendorProfileSource
	detector *AnomalyDetector
	delegate PostingDelegate
	cfg      config.TrustConfig
	logger   *logrus.Logger
}

func NewAutoPostWorkflow(drafts DraftStore, vendors VendorProfileSource, detector *AnomalyDetector, delegate PostingDelegate, cfg config.TrustConfig, logger *logrus.Logger) *AutoPostWorkflow {
	return &AutoPostWorkflow{
		drafts:   drafts,
		vendors:  vendors,
		detector: detector,
		delegate: delegate,
		cfg:      cfg,
		logger:   logger,
	}
}

func (w *AutoPostWorkflow) AttemptAutoPost(ctx context.Context, businessId string, draftId int, actingUserId int) (AttemptAutoPostResult, error) {
	draft, err := w.drafts.FindDraft(ctx, businessId, draftId)
	if err != nil {
		config.LogError(w.logger, "autoPostWorkflow.go", "AttemptAutoPost", "FindDraft", draftId, err)
		return AttemptAutoPostResult{}, err
	}
	if draft == nil {
		return rejected(models.AutoPostReasonDraftNotFound, nil), nil
	}

	var vendor *models.VendorProfile
	if draft.VendorProfileId != nil {
		vendor, err = w.vendors.FindVendorProfile(ctx, businessId, *draft.VendorProfileId)
		if err != nil {
			// Unresolvable link reads the same as a missing one: the draft
			// goes back to review instead of erroring the request.
			config.LogError(w.logger, "autoPostWorkflow.go", "AttemptAutoPost", "FindVendorProfile", *draft.VendorProfileId, err)
			vendor = nil
		}
	}
	if vendor == nil {
		status := models.DraftStatusPendingReview
		if err := w.drafts.UpdateDraft(ctx, draftId, models.DraftUpdate{Status: &status}); err != nil {
			return AttemptAutoPostResult{}, err
		}
		w.logAttempt(ctx, businessId, draftId, false, models.AutoPostReasonVendorUnlinked, nil)
		return rejected(models.AutoPostReasonVendorUnlinked, nil), nil
	}

	flags := w.detector.ComputeAnomalyFlags(ctx, businessId, vendor.ID, ParsedFieldsFromDraft(draft))
	if flags == nil {
		flags = []models.AnomalyFlag{}
	}

	// Flags persist even when the draft is not eligible; they are diagnostic
	// state for the reviewer.
	if err := w.drafts.UpdateDraft(ctx, draftId, models.DraftUpdate{AnomalyFlags: flags}); err != nil {
		config.LogError(w.logger, "autoPostWorkflow.go", "AttemptAutoPost", "UpdateDraft flags", draftId, err)
		return AttemptAutoPostResult{}, err
	}
	if encoded, err := json.Marshal(flags); err == nil {
		draft.AnomalyFlags = datatypes.JSON(encoded)
	}

	eligibility := EvaluateAutoPostEligibility(vendor, draft, w.cfg)
	w.logAttempt(ctx, businessId, draftId, eligibility.Eligible, utils.DereferencePtr(eligibility.Reason), flags)

	if !eligibility.Eligible {
		status := models.DraftStatusPendingReview
		if err := w.drafts.UpdateDraft(ctx, draftId, models.DraftUpdate{Status: &status}); err != nil {
			return AttemptAutoPostResult{}, err
		}
		return rejected(*eligibility.Reason, flags), nil
	}

	postResult, err := w.delegate.PostDraft(ctx, businessId, draftId, actingUserId, true)
	if err != nil {
		return AttemptAutoPostResult{}, err
	}
	return AttemptAutoPostResult{
		AutoPosted:   true,
		AnomalyFlags: flags,
		PostResult:   postResult,
	}, nil
}

func rejected(reason models.AutoPostReason, flags []models.AnomalyFlag) AttemptAutoPostResult {
	return AttemptAutoPostResult{
		AutoPosted:   false,
		Reason:       &reason,
		AnomalyFlags: flags,
	}
}

func (w *AutoPostWorkflow) logAttempt(ctx context.Context, businessId string, draftId int, eligible bool, reason models.AutoPostReason, flags []models.AnomalyFlag) {
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}
	w.logger.WithFields(logrus.Fields{
		"module":        "autoPostWorkflow.go",
		"businessId":    businessId,
		"draftId":       draftId,
		"eligible":      eligible,
		"reason":        string(reason),
		"anomalyFlags":  flags,
		"correlationId": correlationId,
		"attemptedAt":   time.Now().UTC(),
	}).Info("auto-post attempt")
}
