// Package store provides the persisted static fundamentals table.
package store

import (
	"context"
	"time"

	"basket-index/internal/models"
)

// FundamentalsStore defines persistence for the static fundamentals table.
type FundamentalsStore interface {
	// Fundamentals
	SaveFundamentals(ctx context.Context, records []models.FundamentalsRecord) error
	GetFundamentals(ctx context.Context, ticker string) (*StoredFundamentals, error)
	ListFundamentals(ctx context.Context, filter FundamentalsFilter) ([]StoredFundamentals, error)
	DeleteFundamentals(ctx context.Context, ticker string) error

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// StoredFundamentals is a fundamentals row with its write time.
type StoredFundamentals struct {
	Record    models.FundamentalsRecord `json:"record"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// FundamentalsFilter represents filters for listing fundamentals.
type FundamentalsFilter struct {
	Tickers      []string
	MissingOnly  bool // rows without a share count
	UpdatedAfter time.Time
	Limit        int
}

// Sync data types recorded in sync_status.
const (
	SyncFundamentals = "fundamentals"
	SyncSeed         = "seed"
)
