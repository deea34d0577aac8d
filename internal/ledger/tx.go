package ledger

import (
	"context"
)

// Tx is a handle onto the ledger store for the duration of one atomic
// operation. Implementations must make every write visible to later reads on
// the same Tx and must discard all of them if the operation fails.
type Tx interface {
	// State returns the scalar ledger fields.
	State(ctx context.Context) (State, error)

	// SaveState overwrites the scalar ledger fields.
	SaveState(ctx context.Context, st State) error

	// AppendDonation appends d to the donation log and returns it with Index
	// and Receipt assigned.
	AppendDonation(ctx context.Context, d Donation) (Donation, error)

	// Donation returns the entry at index. The caller checks the range.
	Donation(ctx context.Context, index int64) (Donation, error)

	// SumDonations returns the sum of every amount in the donation log.
	SumDonations(ctx context.Context) (Amount, error)

	// Implementation returns the generation whose logic is installed.
	Implementation(ctx context.Context) (Generation, error)

	// SetImplementation records the installed logic generation.
	SetImplementation(ctx context.Context, gen Generation) error

	// Emit appends an event to the outbound log.
	Emit(ctx context.Context, ev Event) (Event, error)
}

// Transferer moves value out of custody. Transfer blocks until the transfer
// has either succeeded or definitely failed.
type Transferer interface {
	Transfer(ctx context.Context, to Identity, amount Amount) error
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, to Identity, amount Amount) error

// Transfer calls f.
func (f TransferFunc) Transfer(ctx context.Context, to Identity, amount Amount) error {
	return f(ctx, to, amount)
}
