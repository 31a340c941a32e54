package models

import "github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Agency{}, &User{},
		&Listing{}, &ListingAvailabilityDay{},
		&ImportRun{}, &ImportRunError{},
	)
	if err != nil {
		config.LogError(config.GetLogger(), "migration.go", "MigrateTable", "AutoMigrate", nil, err)
	}
}
