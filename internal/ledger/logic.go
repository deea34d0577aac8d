package ledger

import (
	"context"
	"fmt"
	"time"
)

// Logic is the behavior attached to one generation.
//
// Implementations are stateless; every persisted field is read from and
// written to the Tx. The unexported setup method seals the set of variants to
// this package and holds the generation's one-time initializer body.
type Logic interface {
	// Generation returns the generation number this logic belongs to.
	Generation() Generation

	// Version returns the informational version tag ("V1", "V2").
	Version() string

	Deposit(ctx context.Context, tx Tx, sender Identity, amount Amount, now time.Time) (Donation, error)
	Withdraw(ctx context.Context, tx Tx, requester Identity, transferer Transferer) (Amount, error)
	TogglePause(ctx context.Context, tx Tx, requester Identity) (bool, error)
	TotalDonated(ctx context.Context, tx Tx) (Amount, error)
	IsPaused(ctx context.Context, tx Tx) (bool, error)

	// setup runs the one-time initializer body against st. The controller
	// persists st afterwards.
	setup(ctx context.Context, tx Tx, st *State, caller Identity) error
}

// LogicFor returns the logic for gen.
func LogicFor(gen Generation) (Logic, error) {
	switch gen {
	case Gen1:
		return v1Logic{}, nil
	case Gen2:
		return v2Logic{}, nil
	default:
		return nil, fmt.Errorf("no logic for generation %d", gen)
	}
}

// requireInitialized loads the state and fails with NotInitialized before
// the first Initialize.
func requireInitialized(ctx context.Context, tx Tx) (State, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	if !st.Initialized() {
		return State{}, newNotInitializedError()
	}
	return st, nil
}

// requireGeneration is requireInitialized plus a check that the initializer
// of gen has committed. Logic installed by AuthorizeUpgrade is inert until
// Reinitialize runs its setup.
func requireGeneration(ctx context.Context, tx Tx, gen Generation) (State, error) {
	st, err := requireInitialized(ctx, tx)
	if err != nil {
		return State{}, err
	}
	if st.InitGeneration < gen {
		return State{}, newSetupPendingError(st.InitGeneration, gen)
	}
	return st, nil
}

// v1Logic accepts deposits unconditionally and has no pause concept.
type v1Logic struct{}

func (v1Logic) Generation() Generation { return Gen1 }

func (v1Logic) Version() string { return "V1" }

func (v1Logic) Deposit(ctx context.Context, tx Tx, sender Identity, amount Amount, now time.Time) (Donation, error) {
	if _, err := requireInitialized(ctx, tx); err != nil {
		return Donation{}, err
	}
	return RecordDeposit(ctx, tx, sender, amount, now, false)
}

func (v1Logic) Withdraw(ctx context.Context, tx Tx, requester Identity, transferer Transferer) (Amount, error) {
	if _, err := requireInitialized(ctx, tx); err != nil {
		return 0, err
	}
	return WithdrawAll(ctx, tx, requester, transferer)
}

func (l v1Logic) TogglePause(context.Context, Tx, Identity) (bool, error) {
	return false, newUnsupportedError(l.Version(), "togglePause")
}

func (l v1Logic) TotalDonated(context.Context, Tx) (Amount, error) {
	return 0, newUnsupportedError(l.Version(), "totalDonated")
}

func (l v1Logic) IsPaused(context.Context, Tx) (bool, error) {
	return false, newUnsupportedError(l.Version(), "isPaused")
}

// setup for generation 1 records the owner.
func (v1Logic) setup(_ context.Context, _ Tx, st *State, caller Identity) error {
	if caller.IsZero() {
		return newUnauthorizedError(caller)
	}
	st.Owner = caller
	return nil
}

// v2Logic adds total tracking and the owner-controlled pause switch.
type v2Logic struct{}

func (v2Logic) Generation() Generation { return Gen2 }

func (v2Logic) Version() string { return "V2" }

func (v2Logic) Deposit(ctx context.Context, tx Tx, sender Identity, amount Amount, now time.Time) (Donation, error) {
	st, err := requireGeneration(ctx, tx, Gen2)
	if err != nil {
		return Donation{}, err
	}
	if st.Paused {
		return Donation{}, newPausedError()
	}
	return RecordDeposit(ctx, tx, sender, amount, now, true)
}

func (v2Logic) Withdraw(ctx context.Context, tx Tx, requester Identity, transferer Transferer) (Amount, error) {
	if _, err := requireInitialized(ctx, tx); err != nil {
		return 0, err
	}
	return WithdrawAll(ctx, tx, requester, transferer)
}

func (v2Logic) TogglePause(ctx context.Context, tx Tx, requester Identity) (bool, error) {
	st, err := requireGeneration(ctx, tx, Gen2)
	if err != nil {
		return false, err
	}
	if err := RequireOwner(st, requester); err != nil {
		return false, err
	}

	st.Paused = !st.Paused
	if err := tx.SaveState(ctx, st); err != nil {
		return false, fmt.Errorf("toggle pause: %w", err)
	}
	if _, err := tx.Emit(ctx, PausedStatusChanged(st.Paused)); err != nil {
		return false, fmt.Errorf("toggle pause: %w", err)
	}
	return st.Paused, nil
}

func (v2Logic) TotalDonated(ctx context.Context, tx Tx) (Amount, error) {
	st, err := requireGeneration(ctx, tx, Gen2)
	if err != nil {
		return 0, err
	}
	return st.TotalDonated, nil
}

func (v2Logic) IsPaused(ctx context.Context, tx Tx) (bool, error) {
	st, err := requireGeneration(ctx, tx, Gen2)
	if err != nil {
		return false, err
	}
	return st.Paused, nil
}

// setup for generation 2 clears the pause switch and backfills TotalDonated
// from the donation log, so the total covers deposits made under V1 too.
func (v2Logic) setup(ctx context.Context, tx Tx, st *State, _ Identity) error {
	sum, err := tx.SumDonations(ctx)
	if err != nil {
		return fmt.Errorf("backfill total donated: %w", err)
	}
	st.Paused = false
	st.TotalDonated = sum
	return nil
}
