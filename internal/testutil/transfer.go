package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// ErrTransferRejected is what ScriptedTransferer returns for a scripted failure.
var ErrTransferRejected = errors.New("transfer rejected")

// Transfer is one attempted transfer.
type Transfer struct {
	To     ledger.Identity
	Amount ledger.Amount
	OK     bool
}

// ScriptedTransferer succeeds unless told to fail the next attempts, and
// records every attempt.
type ScriptedTransferer struct {
	mu       sync.Mutex
	failNext int
	attempts []Transfer
}

// FailNext makes the next n transfers fail with ErrTransferRejected.
func (s *ScriptedTransferer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Transfer implements ledger.Transferer.
func (s *ScriptedTransferer) Transfer(_ context.Context, to ledger.Identity, amount ledger.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.failNext == 0
	if !ok {
		s.failNext--
	}
	s.attempts = append(s.attempts, Transfer{To: to, Amount: amount, OK: ok})
	if !ok {
		return ErrTransferRejected
	}
	return nil
}

// Attempts returns a copy of every attempt so far.
func (s *ScriptedTransferer) Attempts() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transfer(nil), s.attempts...)
}

// Delivered returns the sum of successful transfers.
func (s *ScriptedTransferer) Delivered() ledger.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum ledger.Amount
	for _, a := range s.attempts {
		if a.OK {
			sum += a.Amount
		}
	}
	return sum
}
