package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotDateFormat is the canonical key format for daily snapshots.
const SnapshotDateFormat = "2006-01-02"

// Snapshot is one immutable end-of-day valuation record, keyed by
// (user, calendar date). The current day's snapshot may be rewritten until the
// day rolls over; past dates are never touched.
type Snapshot struct {
	UserID           string
	Date             string
	TotalAssets      decimal.Decimal
	TotalMarketValue decimal.Decimal
	AvailableCash    decimal.Decimal
	CreateTime       time.Time
}

// SnapshotDate formats a time as a snapshot key in UTC.
func SnapshotDate(t time.Time) string {
	return t.UTC().Format(SnapshotDateFormat)
}
