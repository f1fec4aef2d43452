// Package repository defines the rider store contract and its implementations.
package repository

import (
	"context"

	"github.com/okian/ridermerge/internal/domain/model"
)

// RiderSource exposes the read paths used by the blocking engine. Every rider
// carries its derived ResultCount.
type RiderSource interface {
	// ListRidersByStrongID returns riders that carry any national id, ordered by id.
	// Strength is decided by the caller's normalization rules.
	ListRidersByStrongID(ctx context.Context) ([]model.Rider, error)

	// ListRidersByName returns every rider ordered by last name, first name, id.
	ListRidersByName(ctx context.Context) ([]model.Rider, error)

	// ListAllRidersForPhoneticScan returns every rider ordered by id.
	ListAllRidersForPhoneticScan(ctx context.Context) ([]model.Rider, error)
}

// Tx is one atomic unit of work. Readers outside the transaction never observe
// its intermediate state.
type Tx interface {
	// GetRider returns ErrNotFound when the rider does not exist.
	GetRider(ctx context.Context, id int64) (model.Rider, error)

	// ReassignOwnership moves every dependent record of oldID to newID and
	// returns the number of records moved.
	ReassignOwnership(ctx context.Context, oldID, newID int64) (int64, error)

	// UpdateRiderFields writes the non-nil fields.
	UpdateRiderFields(ctx context.Context, id int64, fields model.RiderFields) error

	// DeleteRider removes the rider. It fails while dependent records still reference it.
	DeleteRider(ctx context.Context, id int64) error

	// RecordMerge appends an audit entry.
	RecordMerge(ctx context.Context, entry model.MergeLogEntry) error
}

// Store provides read/write access to riders and their dependent records.
type Store interface {
	RiderSource

	// WithinTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetRider returns ErrNotFound when the rider does not exist.
	GetRider(ctx context.Context, id int64) (model.Rider, error)

	// InsertRider and InsertResult serve the import path, seeding and tests.
	InsertRider(ctx context.Context, r model.Rider) (int64, error)
	InsertResult(ctx context.Context, res model.Result) (int64, error)

	// ResultsByRider returns the results owned by a rider ordered by id.
	ResultsByRider(ctx context.Context, riderID int64) ([]model.Result, error)

	// MergeLog returns the audit trail ordered by insertion.
	MergeLog(ctx context.Context) ([]model.MergeLogEntry, error)

	// Count returns the number of live riders.
	Count(ctx context.Context) (int, error)

	Close() error
}
