package ledger

import (
	"context"
	"fmt"
	"time"
)

// RecordDeposit appends a donation from sender and updates the counters.
//
// trackTotal adds amount to TotalDonated as well; generation 2 logic passes
// true. Emits Deposited(sender, amount).
func RecordDeposit(ctx context.Context, tx Tx, sender Identity, amount Amount, now time.Time, trackTotal bool) (Donation, error) {
	if amount <= 0 {
		return Donation{}, newInvalidAmountError(amount)
	}
	if sender.IsZero() {
		return Donation{}, newAnonymousSenderError()
	}

	st, err := tx.State(ctx)
	if err != nil {
		return Donation{}, fmt.Errorf("record deposit: %w", err)
	}

	balance, err := st.Balance.add(amount)
	if err != nil {
		return Donation{}, err
	}
	st.Balance = balance
	if trackTotal {
		total, err := st.TotalDonated.add(amount)
		if err != nil {
			return Donation{}, err
		}
		st.TotalDonated = total
	}
	st.DepositCount++

	d, err := tx.AppendDonation(ctx, Donation{
		Sender:    sender,
		Amount:    amount,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return Donation{}, fmt.Errorf("record deposit: %w", err)
	}
	if d.Index != st.DepositCount-1 {
		return Donation{}, fmt.Errorf("record deposit: donation index %d does not match deposit count %d", d.Index, st.DepositCount)
	}

	if err := tx.SaveState(ctx, st); err != nil {
		return Donation{}, fmt.Errorf("record deposit: %w", err)
	}
	if _, err := tx.Emit(ctx, Deposited(sender, amount)); err != nil {
		return Donation{}, fmt.Errorf("record deposit: %w", err)
	}
	return d, nil
}

// WithdrawAll moves the whole balance to the owner.
//
// The amount is reserved from the loaded state, the transfer runs, and only
// after it reports success is the balance zeroed and Withdrawn emitted. A
// failed transfer returns TransferFailed with nothing written.
func WithdrawAll(ctx context.Context, tx Tx, requester Identity, transferer Transferer) (Amount, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	if err := RequireOwner(st, requester); err != nil {
		return 0, err
	}
	if st.Balance <= 0 {
		return 0, newNoFundsError()
	}

	amount := st.Balance
	if err := transferer.Transfer(ctx, st.Owner, amount); err != nil {
		return 0, newTransferFailedError(st.Owner, amount, err)
	}

	st.Balance = 0
	if err := tx.SaveState(ctx, st); err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	if _, err := tx.Emit(ctx, Withdrawn(st.Owner, amount)); err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	return amount, nil
}

// GetDonation returns the entry at index exactly as it was appended.
func GetDonation(ctx context.Context, tx Tx, index int64) (Donation, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return Donation{}, fmt.Errorf("get donation: %w", err)
	}
	if index < 0 || index >= st.DepositCount {
		return Donation{}, newIndexOutOfRangeError(index, st.DepositCount)
	}
	d, err := tx.Donation(ctx, index)
	if err != nil {
		return Donation{}, fmt.Errorf("get donation: %w", err)
	}
	return d, nil
}

// Balance returns the custodied balance.
func Balance(ctx context.Context, tx Tx) (Amount, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return st.Balance, nil
}

// TotalDeposits returns the number of accepted deposits.
func TotalDeposits(ctx context.Context, tx Tx) (int64, error) {
	st, err := tx.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("total deposits: %w", err)
	}
	return st.DepositCount, nil
}
