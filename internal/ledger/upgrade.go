package ledger

import (
	"context"
	"fmt"
)

// Initialize runs the generation 1 initializer: caller becomes the owner and
// generation 1 logic becomes the authorized implementation. It succeeds
// exactly once over the store's lifetime.
func Initialize(ctx context.Context, tx Tx, caller Identity) error {
	st, err := tx.State(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if st.InitGeneration != GenUninitialized {
		return newAlreadyInitializedError(st.InitGeneration)
	}

	logic := v1Logic{}
	if err := logic.setup(ctx, tx, &st, caller); err != nil {
		return err
	}
	st.InitGeneration = Gen1

	if err := tx.SaveState(ctx, st); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := tx.SetImplementation(ctx, logic.Generation()); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if _, err := tx.Emit(ctx, Initialized(Gen1)); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// AuthorizeUpgrade approves installing the logic for target and installs it.
//
// Only the owner may call it. The target must be a known generation no lower
// than the installed one; there is no downgrade path. Business fields are not
// touched; the matching reinitializer runs separately (or through
// UpgradeToAndCall).
func AuthorizeUpgrade(ctx context.Context, tx Tx, requester Identity, target Generation) (Logic, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize upgrade: %w", err)
	}
	if err := RequireOwner(st, requester); err != nil {
		return nil, err
	}

	current, err := tx.Implementation(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize upgrade: %w", err)
	}
	logic, err := LogicFor(target)
	if err != nil || target < current {
		return nil, newGenerationMismatchError(current, target)
	}

	if err := tx.SetImplementation(ctx, target); err != nil {
		return nil, fmt.Errorf("authorize upgrade: %w", err)
	}
	if _, err := tx.Emit(ctx, Upgraded(logic.Version())); err != nil {
		return nil, fmt.Errorf("authorize upgrade: %w", err)
	}
	return logic, nil
}

// Reinitialize runs the one-time initializer of the installed logic.
//
// The target is active's generation. It must be at least 2 and exactly one
// above InitGeneration, so a generation step can be neither skipped nor
// repeated. Logic is only installed through AuthorizeUpgrade, so the body
// never runs without the owner's approval.
func Reinitialize(ctx context.Context, tx Tx, caller Identity, active Logic) error {
	st, err := tx.State(ctx)
	if err != nil {
		return fmt.Errorf("reinitialize: %w", err)
	}

	target := active.Generation()
	if target < Gen2 || st.InitGeneration != target-1 {
		return newGenerationMismatchError(st.InitGeneration, target)
	}

	if err := active.setup(ctx, tx, &st, caller); err != nil {
		return err
	}
	st.InitGeneration = target

	if err := tx.SaveState(ctx, st); err != nil {
		return fmt.Errorf("reinitialize: %w", err)
	}
	if _, err := tx.Emit(ctx, Initialized(target)); err != nil {
		return fmt.Errorf("reinitialize: %w", err)
	}
	return nil
}

// UpgradeToAndCall authorizes and installs target, then runs its
// reinitializer, as one unit. Any failure leaves the caller's Tx to be
// rolled back in full.
func UpgradeToAndCall(ctx context.Context, tx Tx, requester Identity, target Generation) (Logic, error) {
	logic, err := AuthorizeUpgrade(ctx, tx, requester, target)
	if err != nil {
		return nil, err
	}
	if err := Reinitialize(ctx, tx, requester, logic); err != nil {
		return nil, err
	}
	return logic, nil
}

// ActiveLogic returns the logic of the installed implementation.
func ActiveLogic(ctx context.Context, tx Tx) (Logic, error) {
	gen, err := tx.Implementation(ctx)
	if err != nil {
		return nil, fmt.Errorf("active logic: %w", err)
	}
	return LogicFor(gen)
}
