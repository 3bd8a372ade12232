package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/receipts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinancialTransaction is the ledger entry created when a draft is posted.
type FinancialTransaction struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	BusinessId      string              `gorm:"size:40;index:idx_fintx_business" json:"business_id"`
	DraftId         int                 `gorm:"index:idx_fintx_draft" json:"draft_id"`
	VendorProfileId int                 `json:"vendor_profile_id"`
	TransactionDate time.Time           `json:"transaction_date"`
	Total           decimal.Decimal     `gorm:"type:decimal(20,6)" json:"total"`
	Tax             decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"tax"`
	AutoPosted      bool                `json:"auto_posted"`
	CreatedByUserId int                 `json:"created_by_user_id"`
	CreatedAt       time.Time           `json:"created_at"`
}

// InventoryTransaction records stock received for one matched receipt line.
type InventoryTransaction struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BusinessId             string          `gorm:"size:40;index:idx_invtx_business" json:"business_id"`
	FinancialTransactionId int             `gorm:"index:idx_invtx_fintx" json:"financial_transaction_id"`
	InventoryItemId        int             `json:"inventory_item_id"`
	Quantity               decimal.Decimal `gorm:"type:decimal(20,6)" json:"quantity"`
	UnitCost               decimal.Decimal `gorm:"type:decimal(20,6)" json:"unit_cost"`
	CreatedAt              time.Time       `json:"created_at"`
}

type PostResult struct {
	FinancialTransactionId       int `json:"financial_transaction_id"`
	InventoryTransactionsCreated int `json:"inventory_transactions_created"`
}

// LedgerPostingStore is the posting delegate: it commits a draft as a
// financial transaction. Errors here are hard failures; a failed ledger
// write must never read as success or ineligibility.
type LedgerPostingStore struct {
	db *gorm.DB
}

func NewLedgerPostingStore(db *gorm.DB) *LedgerPostingStore {
	return &LedgerPostingStore{db: db}
}

func (s *LedgerPostingStore) PostDraft(ctx context.Context, businessId string, draftId int, actingUserId int, autoPosted bool) (*PostResult, error) {
	var result PostResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var draft DocumentDraft
		if err := tx.Where("business_id = ? AND id = ?", businessId, draftId).
			First(&draft).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if draft.Status == DraftStatusPosted {
			return errors.New("draft already posted")
		}
		if draft.VendorProfileId == nil {
			return errors.New("draft has no vendor profile")
		}
		if !draft.ParsedTotal.Valid {
			return errors.New("draft has no parsed total")
		}

		transactionDate := time.Now()
		if draft.ParsedDate != nil {
			transactionDate = *draft.ParsedDate
		}

		finTx := FinancialTransaction{
			BusinessId:      businessId,
			DraftId:         draft.ID,
			VendorProfileId: *draft.VendorProfileId,
			TransactionDate: transactionDate,
			Total:           draft.ParsedTotal.Decimal,
			Tax:             draft.ParsedTax,
			AutoPosted:      autoPosted,
			CreatedByUserId: actingUserId,
		}
		if err := tx.Create(&finTx).Error; err != nil {
			return err
		}

		created := 0
		for _, line := range draft.LineItems() {
			if line.InventoryItemId == nil {
				continue
			}
			quantity, ok := utils.CoerceFloat(line.Quantity)
			if !ok || quantity <= 0 {
				quantity = 1
			}
			unitCost, ok := utils.CoerceFloat(line.UnitPrice)
			if !ok {
				if amount, amountOk := utils.CoerceFloat(line.Amount); amountOk {
					unitCost = amount / quantity
				}
			}
			invTx := InventoryTransaction{
				BusinessId:             businessId,
				FinancialTransactionId: finTx.ID,
				InventoryItemId:        *line.InventoryItemId,
				Quantity:               decimal.NewFromFloat(quantity),
				UnitCost:               decimal.NewFromFloat(unitCost),
			}
			if err := tx.Create(&invTx).Error; err != nil {
				return err
			}
			created++
		}

		now := time.Now()
		if err := tx.Model(&DocumentDraft{}).
			Where("id = ?", draft.ID).
			Updates(map[string]interface{}{
				"status":    DraftStatusPosted,
				"posted_at": now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&VendorProfile{}).
			Where("business_id = ? AND id = ?", businessId, *draft.VendorProfileId).
			UpdateColumn("total_posted", gorm.Expr("total_posted + ?", 1)).Error; err != nil {
			return err
		}

		result = PostResult{
			FinancialTransactionId:       finTx.ID,
			InventoryTransactionsCreated: created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
