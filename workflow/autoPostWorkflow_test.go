package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"github.com/shopspring/decimal"
)

type fakeDraftStore struct {
	draft   *models.DocumentDraft
	findErr error

	updates []models.DraftUpdate
}

func (f *fakeDraftStore) FindDraft(ctx context.Context, businessId string, draftId int) (*models.DocumentDraft, error) {
	return f.draft, f.findErr
}

func (f *fakeDraftStore) UpdateDraft(ctx context.Context, draftId int, update models.DraftUpdate) error {
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeDraftStore) lastStatus() *models.DraftStatus {
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].Status != nil {
			return f.updates[i].Status
		}
	}
	return nil
}

func (f *fakeDraftStore) flagsPersisted() bool {
	for _, u := range f.updates {
		if u.AnomalyFlags != nil {
			return true
		}
	}
	return false
}

type fakeDelegate struct {
	calls  int
	result *models.PostResult
	err    error

	lastAutoPosted bool
}

func (f *fakeDelegate) PostDraft(ctx context.Context, businessId string, draftId int, actingUserId int, autoPosted bool) (*models.PostResult, error) {
	f.calls++
	f.lastAutoPosted = autoPosted
	return f.result, f.err
}

func vendorId(id int) *int { return &id }

func pendingDraft(vendorProfileId *int, confidence float64) *models.DocumentDraft {
	return &models.DocumentDraft{
		ID:               77,
		BusinessId:       "biz-1",
		VendorProfileId:  vendorProfileId,
		Status:           models.DraftStatusPendingReview,
		ParsedVendorName: "Acme Produce",
		ParsedTotal: decimal.NullDecimal{
			Decimal: decimal.NewFromFloat(104.5),
			Valid:   true,
		},
		ConfidenceScore: confidence,
	}
}

func newAutoPostWorkflow(drafts *fakeDraftStore, vendors *fakeVendorSource, history *fakeHistorySource, delegate *fakeDelegate) *AutoPostWorkflow {
	logger := config.GetLogger()
	cfg := testTrustConfig()
	detector := NewAnomalyDetector(history, vendors, cfg, logger)
	return NewAutoPostWorkflow(drafts, vendors, detector, delegate, cfg, logger)
}

func TestAttemptAutoPost_DraftNotFound(t *testing.T) {
	drafts := &fakeDraftStore{}
	delegate := &fakeDelegate{}
	w := newAutoPostWorkflow(drafts, &fakeVendorSource{}, &fakeHistorySource{}, delegate)

	result, err := w.AttemptAutoPost(context.Background(), "biz-1", 404, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AutoPosted {
		t.Fatal("missing draft must not auto-post")
	}
	if result.Reason == nil || *result.Reason != models.AutoPostReasonDraftNotFound {
		t.Fatalf("reason = %v, want draft_not_found", result.Reason)
	}
	if delegate.calls != 0 {
		t.Fatalf("delegate calls = %d, want 0", delegate.calls)
	}
	if len(drafts.updates) != 0 {
		t.Fatalf("missing draft must not be updated, got %v", drafts.updates)
	}
}

func TestAttemptAutoPost_VendorUnlinked(t *testing.T) {
	drafts := &fakeDraftStore{draft: pendingDraft(nil, 0.95)}
	delegate := &fakeDelegate{}
	w := newAutoPostWorkflow(drafts, &fakeVendorSource{}, &fakeHistorySource{}, delegate)

	result, err := w.AttemptAutoPost(context.Background(), "biz-1", 77, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason == nil || *result.Reason != models.AutoPostReasonVendorUnlinked {
		t.Fatalf("reason = %v, want vendor_unlinked", result.Reason)
	}
	if status := drafts.lastStatus(); status == nil || *status != models.DraftStatusPendingReview {
		t.Fatalf("status = %v, want pending_review", status)
	}
	if delegate.calls != 0 {
		t.Fatalf("delegate calls = %d, want 0", delegate.calls)
	}
}

func TestAttemptAutoPost_VendorLookupFailureLandsInReview(t *testing.T) {
	drafts := &fakeDraftStore{draft: pendingDraft(vendorId(1), 0.95)}
	delegate := &fakeDelegate{}
	vendors := &fakeVendorSource{err: errors.New("db down")}
	w := newAutoPostWorkflow(drafts, vendors, &fakeHistorySource{}, delegate)

	result, err := w.AttemptAutoPost(context.Background(), "biz-1", 77, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason == nil || *result.Reason != models.AutoPostReasonVendorUnlinked {
		t.Fatalf("reason = %v, want vendor_unlinked", result.Reason)
	}
	if delegate.calls != 0 {
		t.Fatalf("delegate calls = %d, want 0", delegate.calls)
	}
}

func TestAttemptAutoPost_IneligiblePersistsFlagsAndReturnsToReview(t *testing.T) {
	drafts := &fakeDraftStore{draft: pendingDraft(vendorId(1), 0.95)}
	delegate := &fakeDelegate{}
	vendors := &fakeVendorSource{profile: &models.VendorProfile{
		ID:              1,
		VendorName:      "Acme Produce",
		TrustState:      models.VendorTrustStateTrusted,
		TotalPosted:     10,
		AutoPostEnabled: false,
	}}
	w := newAutoPostWorkflow(drafts, vendors, &fakeHistorySource{}, delegate)

	result, err := w.AttemptAutoPost(context.Background(), "biz-1", 77, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AutoPosted {
		t.Fatal("disabled vendor must not auto-post")
	}
	if result.Reason == nil || *result.Reason != models.AutoPostReasonAutoPostDisabled {
		t.Fatalf("reason = %v, want auto_post_disabled", result.Reason)
	}
	if !drafts.flagsPersisted() {
		t.Fatal("anomaly flags must be persisted even when ineligible")
	}
	if status := drafts.lastStatus(); status == nil || *status != models.DraftStatusPendingReview {
		t.Fatalf("status = %v, want pending_review", status)
	}
	if delegate.calls != 0 {
		t.Fatalf("delegate calls = %d, want 0", delegate.calls)
	}
}

func TestAttemptAutoPost_EligibleEndToEnd(t *testing.T) {
	drafts := &fakeDraftStore{draft: pendingDraft(vendorId(1), 0.92)}
	delegate := &fakeDelegate{result: &models.PostResult{
		FinancialTransactionId:       501,
		InventoryTransactionsCreated: 3,
	}}
	vendors := &fakeVendorSource{profile: &models.VendorProfile{
		ID:              1,
		VendorName:      "Acme Produce",
		TrustState:      models.VendorTrustStateTrusted,
		TotalPosted:     10,
		AutoPostEnabled: true,
	}}
	w := newAutoPostWorkflow(drafts, vendors, &fakeHistorySource{}, delegate)

	result, err := w.AttemptAutoPost(context.Background(), "biz-1", 77, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AutoPosted {
		t.Fatalf("expected auto-post, got %+v", result)
	}
	if result.Reason != nil {
		t.Fatalf("reason = %v, want nil", result.Reason)
	}
	if delegate.calls != 1 {
		t.Fatalf("delegate calls = %d, want exactly 1", delegate.calls)
	}
	if !delegate.lastAutoPosted {
		t.Fatal("delegate must be invoked with autoPosted=true")
	}
	if result.PostResult == nil || result.PostResult.FinancialTransactionId != 501 {
		t.Fatalf("post result = %+v, want transaction 501", result.PostResult)
	}
	if status := drafts.lastStatus(); status != nil {
		t.Fatalf("eligible draft must not be pushed back to review, got status %v", *status)
	}
}

func TestAttemptAutoPost_DelegateErrorPropagates(t *testing.T) {
	drafts := &fakeDraftStore{draft: pendingDraft(vendorId(1), 0.92)}
	delegate := &fakeDelegate{err: errors.New("ledger write failed")}
	vendors := &fakeVendorSource{profile: &models.VendorProfile{
		ID:              1,
		VendorName:      "Acme Produce",
		TrustState:      models.VendorTrustStateTrusted,
		TotalPosted:     10,
		AutoPostEnabled: true,
	}}
	w := newAutoPostWorkflow(drafts, vendors, &fakeHistorySource{}, delegate)

	_, err := w.AttemptAutoPost(context.Background(), "biz-1", 77, 1)
	if err == nil {
		t.Fatal("posting failure must propagate as an error, not a rejection")
	}
}
