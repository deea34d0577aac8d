package bank

import (
	"context"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// Initialize makes caller the owner and installs generation 1.
func (b *Bank) Initialize(ctx context.Context, caller ledger.Identity) error {
	_, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpInitialize, Caller: caller})
	return err
}

// Reinitialize runs the installed generation's one-time initializer.
func (b *Bank) Reinitialize(ctx context.Context, caller ledger.Identity) error {
	_, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpReinitialize, Caller: caller})
	return err
}

// Upgrade installs the logic of target and returns its version tag.
func (b *Bank) Upgrade(ctx context.Context, caller ledger.Identity, target ledger.Generation) (string, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpUpgrade, Caller: caller, Target: target})
	return res.Version, err
}

// UpgradeAndCall installs target and runs its initializer atomically.
func (b *Bank) UpgradeAndCall(ctx context.Context, caller ledger.Identity, target ledger.Generation) (string, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpUpgradeAndCall, Caller: caller, Target: target})
	return res.Version, err
}

// Deposit records amount from sender.
func (b *Bank) Deposit(ctx context.Context, sender ledger.Identity, amount ledger.Amount) (ledger.Donation, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpDeposit, Caller: sender, Value: amount})
	return res.Donation, err
}

// Withdraw transfers the whole balance to the owner.
func (b *Bank) Withdraw(ctx context.Context, caller ledger.Identity) (ledger.Amount, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpWithdraw, Caller: caller})
	return res.Amount, err
}

// TogglePause flips the pause switch and returns the new value.
func (b *Bank) TogglePause(ctx context.Context, caller ledger.Identity) (bool, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpTogglePause, Caller: caller})
	return res.Paused, err
}

func (b *Bank) Balance(ctx context.Context) (ledger.Amount, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpBalance})
	return res.Amount, err
}

func (b *Bank) DepositCount(ctx context.Context) (int64, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpDepositCount})
	return res.Count, err
}

func (b *Bank) TotalDonated(ctx context.Context) (ledger.Amount, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpTotalDonated})
	return res.Amount, err
}

func (b *Bank) IsPaused(ctx context.Context) (bool, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpIsPaused})
	return res.Paused, err
}

func (b *Bank) Donation(ctx context.Context, index int64) (ledger.Donation, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpDonation, Index: index})
	return res.Donation, err
}

// Version returns the version tag of the installed logic.
func (b *Bank) Version(ctx context.Context) (string, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpVersion})
	return res.Version, err
}

// Generation returns the highest generation whose initializer has run.
func (b *Bank) Generation(ctx context.Context) (ledger.Generation, error) {
	res, err := b.Submit(ctx, dispatch.Call{Op: dispatch.OpGeneration})
	return res.Generation, err
}
