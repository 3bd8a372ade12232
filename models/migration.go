package models

import "bitbucket.org/mmdatafocus/receipts_backend/config"

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&InventoryItem{},
		&ItemAlias{},
		&VendorProfile{},
		&DocumentDraft{},
		&FinancialTransaction{},
		&InventoryTransaction{},
	)
	if err != nil {
		panic(err)
	}
}
