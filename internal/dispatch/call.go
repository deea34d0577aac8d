package dispatch

import (
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// Op names an inbound operation.
type Op string

const (
	OpInitialize     Op = "initialize"
	OpReinitialize   Op = "reinitialize"
	OpUpgrade        Op = "upgrade"
	OpUpgradeAndCall Op = "upgrade_and_call"
	OpDeposit        Op = "deposit"
	OpWithdraw       Op = "withdraw"
	OpTogglePause    Op = "toggle_pause"
	OpBalance        Op = "balance"
	OpDepositCount   Op = "deposit_count"
	OpTotalDonated   Op = "total_donated"
	OpIsPaused       Op = "is_paused"
	OpDonation       Op = "donation"
	OpVersion        Op = "version"
	OpGeneration     Op = "generation"
)

// Ops lists every operation in a stable order.
var Ops = []Op{
	OpInitialize,
	OpReinitialize,
	OpUpgrade,
	OpUpgradeAndCall,
	OpDeposit,
	OpWithdraw,
	OpTogglePause,
	OpBalance,
	OpDepositCount,
	OpTotalDonated,
	OpIsPaused,
	OpDonation,
	OpVersion,
	OpGeneration,
}

// ReadOnly reports whether op never mutates the store.
func (op Op) ReadOnly() bool {
	switch op {
	case OpBalance, OpDepositCount, OpTotalDonated, OpIsPaused, OpDonation, OpVersion, OpGeneration:
		return true
	}
	return false
}

// Valid reports whether op is known.
func (op Op) Valid() bool {
	for _, known := range Ops {
		if op == known {
			return true
		}
	}
	return false
}

// Call is one inbound request, forwarded unmodified to the active logic.
// Only the fields the operation uses need to be set.
type Call struct {
	Op     Op
	Caller ledger.Identity
	Value  ledger.Amount     // deposit
	Index  int64             // donation
	Target ledger.Generation // upgrade, upgrade_and_call
}

// Result carries what an operation returned. Only the fields relevant to the
// operation are set.
type Result struct {
	CallID     string
	Amount     ledger.Amount // balance, total_donated, withdraw
	Count      int64         // deposit_count
	Paused     bool          // is_paused, toggle_pause
	Donation   ledger.Donation
	Version    string            // version, upgrade, upgrade_and_call
	Generation ledger.Generation // generation, reinitialize, upgrade, upgrade_and_call
	Events     []ledger.Event
}
