package store

import (
	"fmt"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// stateColumnNames lists every ledger_state column this build can map onto
// ledger.State, across all generations.
var stateColumnNames = []string{
	"owner",
	"deposit_count",
	"balance",
	"init_generation",
	"total_donated",
	"paused",
}

// stateRow is ledger.State in column types.
type stateRow struct {
	owner          string
	depositCount   int64
	balance        int64
	initGeneration int64
	totalDonated   int64
	paused         bool
}

func newStateRow(st ledger.State) stateRow {
	return stateRow{
		owner:          string(st.Owner),
		depositCount:   st.DepositCount,
		balance:        int64(st.Balance),
		initGeneration: int64(st.InitGeneration),
		totalDonated:   int64(st.TotalDonated),
		paused:         st.Paused,
	}
}

func (r stateRow) state() ledger.State {
	return ledger.State{
		Owner:          ledger.Identity(r.owner),
		DepositCount:   r.depositCount,
		Balance:        ledger.Amount(r.balance),
		InitGeneration: ledger.Generation(r.initGeneration),
		TotalDonated:   ledger.Amount(r.totalDonated),
		Paused:         r.paused,
	}
}

// target returns the scan destination for column name.
func (r *stateRow) target(name string) (any, error) {
	switch name {
	case "owner":
		return &r.owner, nil
	case "deposit_count":
		return &r.depositCount, nil
	case "balance":
		return &r.balance, nil
	case "init_generation":
		return &r.initGeneration, nil
	case "total_donated":
		return &r.totalDonated, nil
	case "paused":
		return &r.paused, nil
	default:
		return nil, fmt.Errorf("unmapped state column %q", name)
	}
}

// value returns the bind argument for column name.
func (r stateRow) value(name string) (any, error) {
	switch name {
	case "owner":
		return r.owner, nil
	case "deposit_count":
		return r.depositCount, nil
	case "balance":
		return r.balance, nil
	case "init_generation":
		return r.initGeneration, nil
	case "total_donated":
		return r.totalDonated, nil
	case "paused":
		if r.paused {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unmapped state column %q", name)
	}
}

func (r stateRow) isZero(name string) bool {
	v, err := r.value(name)
	if err != nil {
		return false
	}
	switch v := v.(type) {
	case string:
		return v == ""
	case int64:
		return v == 0
	}
	return false
}
