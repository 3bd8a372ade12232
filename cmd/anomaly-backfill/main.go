// anomaly-backfill recomputes anomaly flags for a business's pending-review
// drafts. Run after tuning detector thresholds so reviewers see flags
// computed under the current rules.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     BACKFILL_BUSINESS_ID=<id> go run ./cmd/anomaly-backfill
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"bitbucket.org/mmdatafocus/receipts_backend/workflow"
)

func main() {
	businessId := os.Getenv("BACKFILL_BUSINESS_ID")
	if businessId == "" {
		fmt.Fprintln(os.Stderr, "BACKFILL_BUSINESS_ID is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	logger := config.GetLogger()
	cfg := config.GetTrustConfig()
	drafts := models.NewDraftStore(db)
	vendors := models.NewVendorProfileStore(db)
	detector := workflow.NewAnomalyDetector(drafts, vendors, cfg, logger)

	var pending []models.DocumentDraft
	err := db.WithContext(ctx).
		Where("business_id = ? AND status IN ?", businessId,
			[]models.DraftStatus{models.DraftStatusDraft, models.DraftStatusPendingReview}).
		Find(&pending).Error
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list drafts: %v\n", err)
		os.Exit(1)
	}

	updated := 0
	skipped := 0
	for i := range pending {
		draft := &pending[i]
		if draft.VendorProfileId == nil {
			skipped++
			continue
		}
		flags := detector.ComputeAnomalyFlags(ctx, businessId, *draft.VendorProfileId, workflow.ParsedFieldsFromDraft(draft))
		if flags == nil {
			flags = []models.AnomalyFlag{}
		}
		if err := drafts.UpdateDraft(ctx, draft.ID, models.DraftUpdate{AnomalyFlags: flags}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to update draft %d: %v\n", draft.ID, err)
			os.Exit(1)
		}
		updated++
	}

	fmt.Printf("anomaly backfill done: business=%s drafts=%d updated=%d skipped(no vendor)=%d\n",
		businessId, len(pending), updated, skipped)
}
