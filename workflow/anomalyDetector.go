package workflow

import (
	"context"
	"math"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/config"
	"bitbucket.org/mmdatafocus/receipts_backend/models"
	"bitbucket.org/mmdatafocus/receipts_backend/textmatch"
	"bitbucket.org/mmdatafocus/receipts_backend/utils"
	"github.com/sirupsen/logrus"
)

// DraftHistorySource reads a vendor's posted documents as the anomaly
// baseline.
type DraftHistorySource interface {
	ListPostedDrafts(ctx context.Context, businessId string, vendorProfileId int, since time.Time, limit int) ([]models.DocumentDraft, error)
}

// VendorProfileSource reads vendor trust profiles.
type VendorProfileSource interface {
	FindVendorProfile(ctx context.Context, businessId string, vendorProfileId int) (*models.VendorProfile, error)
}

// ParsedDocumentFields carries the freshly parsed fields under inspection.
// Total and Tax stay loosely typed; the OCR layer produces strings, numbers
// or nulls depending on version.
type ParsedDocumentFields struct {
	VendorName      string
	Date            *time.Time
	Total           any
	Tax             any
	ConfidenceScore float64
	LineItemCount   int
}

func ParsedFieldsFromDraft(draft *models.DocumentDraft) ParsedDocumentFields {
	fields := ParsedDocumentFields{
		VendorName:      draft.ParsedVendorName,
		Date:            draft.ParsedDate,
		ConfidenceScore: draft.ConfidenceScore,
		LineItemCount:   draft.LineItemCount(),
	}
	if draft.ParsedTotal.Valid {
		fields.Total = draft.ParsedTotal.Decimal
	}
	if draft.ParsedTax.Valid {
		fields.Tax = draft.ParsedTax.Decimal
	}
	return fields
}

const (
	largeTotalMinHistory    = 5
	largeTotalPercentile    = 0.95
	newFormatConfidenceMax  = 0.70
	newFormatMinPosted      = 3
	nameMismatchMaxDistance = 0.30
	lineCountMinHistory     = 3
	lineCountMaxDeviation   = 0.50
	duplicateTotalTolerance = 0.0001
	duplicateWindowDays     = 7
)

// AnomalyDetector compares a parsed document against the vendor's trailing
// posted history. Rules are independent; flags accumulate deduplicated.
// History and profile reads fail open so a degraded store only weakens the
// baseline instead of blocking review.
type AnomalyDetector struct {
	drafts  DraftHistorySource
	vendors VendorProfileSource
	cfg     config.TrustConfig
	logger  *logrus.Logger
}

func NewAnomalyDetector(drafts DraftHistorySource, vendors VendorProfileSource, cfg config.TrustConfig, logger *logrus.Logger) *AnomalyDetector {
	return &AnomalyDetector{
		drafts:  drafts,
		vendors: vendors,
		cfg:     cfg,
		logger:  logger,
	}
}

func (d *AnomalyDetector) ComputeAnomalyFlags(ctx context.Context, businessId string, vendorProfileId int, parsed ParsedDocumentFields) []models.AnomalyFlag {
	since := time.Now().AddDate(0, 0, -d.cfg.HistoryDays)
	history, err := d.drafts.ListPostedDrafts(ctx, businessId, vendorProfileId, since, d.cfg.HistoryLimit)
	if err != nil {
		config.LogError(d.logger, "anomalyDetector.go", "ComputeAnomalyFlags", "ListPostedDrafts", vendorProfileId, err)
		history = nil
	}

	vendor, err := d.vendors.FindVendorProfile(ctx, businessId, vendorProfileId)
	if err != nil {
		config.LogError(d.logger, "anomalyDetector.go", "ComputeAnomalyFlags", "FindVendorProfile", vendorProfileId, err)
		vendor = nil
	}

	var flags []models.AnomalyFlag

	currentTotal, hasTotal := utils.CoerceFloat(parsed.Total)

	if hasTotal && largeTotal(currentTotal, history) {
		flags = append(flags, models.AnomalyFlagLargeTotal)
	}

	// A vendor with posting history producing a low-confidence parse points
	// at a template change at the vendor, not routine variance.
	if vendor != nil &&
		parsed.ConfidenceScore < newFormatConfidenceMax &&
		vendor.TotalPosted >= newFormatMinPosted {
		flags = append(flags, models.AnomalyFlagNewFormat)
	}

	if vendor != nil {
		similarity := textmatch.DiceSimilarity(parsed.VendorName, vendor.VendorName)
		if 1-similarity > nameMismatchMaxDistance {
			flags = append(flags, models.AnomalyFlagVendorNameMismatch)
		}
	}

	if unusualLineCount(parsed.LineItemCount, history) {
		flags = append(flags, models.AnomalyFlagUnusualLineCount)
	}

	if hasTotal && parsed.Date != nil && duplicateSuspected(currentTotal, *parsed.Date, history) {
		flags = append(flags, models.AnomalyFlagDuplicateSuspected)
	}

	return utils.UniqueSlice(flags)
}

// largeTotal flags a total above the 95th percentile of the vendor's
// history. Fewer than five historical totals is too thin a baseline.
func largeTotal(currentTotal float64, history []models.DocumentDraft) bool {
	var totals []float64
	for i := range history {
		if total, ok := history[i].ParsedTotalFloat(); ok {
			totals = append(totals, total)
		}
	}
	if len(totals) < largeTotalMinHistory {
		return false
	}
	sort.Float64s(totals)
	index := int(math.Ceil(largeTotalPercentile*float64(len(totals)))) - 1
	if index < 0 {
		index = 0
	}
	if index > len(totals)-1 {
		index = len(totals) - 1
	}
	return currentTotal > totals[index]
}

func unusualLineCount(currentCount int, history []models.DocumentDraft) bool {
	var counts []int
	for i := range history {
		if count := history[i].LineItemCount(); count > 0 {
			counts = append(counts, count)
		}
	}
	if len(counts) < lineCountMinHistory {
		return false
	}
	sum := 0
	for _, count := range counts {
		sum += count
	}
	mean := float64(sum) / float64(len(counts))
	if mean == 0 {
		return false
	}
	return math.Abs(float64(currentCount)-mean)/mean > lineCountMaxDeviation
}

func duplicateSuspected(currentTotal float64, currentDate time.Time, history []models.DocumentDraft) bool {
	window := time.Duration(duplicateWindowDays) * 24 * time.Hour
	for i := range history {
		past := &history[i]
		if past.ParsedDate == nil {
			continue
		}
		pastTotal, ok := past.ParsedTotalFloat()
		if !ok {
			continue
		}
		if math.Abs(pastTotal-currentTotal) > duplicateTotalTolerance {
			continue
		}
		gap := currentDate.Sub(*past.ParsedDate)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return true
		}
	}
	return false
}
