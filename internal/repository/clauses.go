package repository

import "gorm.io/gorm/clause"

// onConflictDoNothing builds the upsert clause used by the get-or-create
// helpers: the conflicting insert is silently dropped, and the caller
// re-reads the row that won the race.
func onConflictDoNothing(uniqueColumn string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: uniqueColumn}},
		DoNothing: true,
	}
}
