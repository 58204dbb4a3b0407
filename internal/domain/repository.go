package domain

import (
	"context"

	"github.com/google/uuid"
)

// TransactionRepository defines the interface for transaction persistence operations
type TransactionRepository interface {
	// Create stores a new transaction and assigns its Sequence
	Create(ctx context.Context, tx *Transaction) error

	// CreateBatch stores the transactions all or none, skipping IDs already stored,
	// and assigns every element its Sequence. It returns how many were new.
	CreateBatch(ctx context.Context, txns []Transaction) (int, error)

	// ListByUsers retrieves every transaction of the given users,
	// ordered by date then arrival order
	ListByUsers(ctx context.Context, userIDs []uuid.UUID) ([]Transaction, error)

	// ListSells retrieves the SELL transactions of a user, ordered by date then arrival order
	ListSells(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
}

// PriceRepository defines the interface for price history lookups
type PriceRepository interface {
	// ListByHolding retrieves the full price history of a holding, oldest first
	ListByHolding(ctx context.Context, holdingID uuid.UUID) ([]PricePoint, error)

	// Latest retrieves the most recent price of a holding
	Latest(ctx context.Context, holdingID uuid.UUID) (*PricePoint, error)
}

// SnapshotRepository defines the interface for snapshot persistence operations
type SnapshotRepository interface {
	// ReplaceAll discards every snapshot of the subject/scope and stores the given ones.
	// It is atomic: on error the previous snapshots are left untouched.
	ReplaceAll(ctx context.Context, subjectID uuid.UUID, scope Scope, snapshots []Snapshot) error

	// List retrieves the snapshots of a subject/scope ordered by date
	List(ctx context.Context, subjectID uuid.UUID, scope Scope) ([]Snapshot, error)
}

// SubjectRepository defines the interface for users and families
type SubjectRepository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	GetFamily(ctx context.Context, id uuid.UUID) (*Family, error)
	ListFamilies(ctx context.Context) ([]*Family, error)
	ListFamilyMembers(ctx context.Context, familyID uuid.UUID) ([]*User, error)
}

// HoldingRepository defines the interface for fund metadata
type HoldingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Holding, error)
	Create(ctx context.Context, holding *Holding) error
	List(ctx context.Context) ([]*Holding, error)
}

// LotRepository gives serialized access to the persisted lot book of one (user, holding)
type LotRepository interface {
	// WithinHoldingLock runs fn while holding an exclusive lock on the (user, holding) lot book.
	// Changes made through the LotTx are committed only if fn returns nil.
	WithinHoldingLock(ctx context.Context, userID, holdingID uuid.UUID, fn func(tx LotTx) error) error
}

// LotTx is the unit of work handed out by LotRepository.WithinHoldingLock
type LotTx interface {
	// OpenLots returns the lots with remaining units, oldest first, locked for update
	OpenLots(ctx context.Context) ([]Lot, error)

	// HasLot reports whether a lot was already opened for the source transaction
	HasLot(ctx context.Context, lotID uuid.UUID) (bool, error)

	// AddLot stores a newly opened lot
	AddLot(ctx context.Context, lot *Lot) error

	// UpdateLots persists remaining quantity and cost basis of the given lots
	UpdateLots(ctx context.Context, lots []Lot) error

	// HasDisposal reports whether a disposal with the same key was already applied
	HasDisposal(ctx context.Context, key DisposalKey) (bool, error)

	// AddDisposal records an applied disposal and its lot consumptions
	AddDisposal(ctx context.Context, d *Disposal) error
}
