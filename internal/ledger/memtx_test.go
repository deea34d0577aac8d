package ledger

import (
	"context"
	"fmt"
	"slices"
)

// memTx is an in-memory Tx with rollback, used to test the domain rules
// without SQLite.
type memTx struct {
	state     State
	donations []Donation
	events    []Event
	impl      Generation
}

func newMemTx() *memTx {
	return &memTx{impl: Gen1}
}

// run executes fn and restores the previous contents if it fails, the way a
// store transaction would.
func (m *memTx) run(fn func(tx Tx) error) error {
	saved := memTx{
		state:     m.state,
		donations: slices.Clone(m.donations),
		events:    slices.Clone(m.events),
		impl:      m.impl,
	}
	if err := fn(m); err != nil {
		*m = saved
		return err
	}
	return nil
}

func (m *memTx) State(context.Context) (State, error) {
	return m.state, nil
}

func (m *memTx) SaveState(_ context.Context, st State) error {
	m.state = st
	return nil
}

func (m *memTx) AppendDonation(_ context.Context, d Donation) (Donation, error) {
	d.Index = int64(len(m.donations))
	d.Receipt = fmt.Sprintf("receipt-%d", d.Index)
	m.donations = append(m.donations, d)
	return d, nil
}

func (m *memTx) Donation(_ context.Context, index int64) (Donation, error) {
	if index < 0 || index >= int64(len(m.donations)) {
		return Donation{}, fmt.Errorf("donation %d not found", index)
	}
	return m.donations[index], nil
}

func (m *memTx) SumDonations(context.Context) (Amount, error) {
	var sum Amount
	for _, d := range m.donations {
		sum += d.Amount
	}
	return sum, nil
}

func (m *memTx) Implementation(context.Context) (Generation, error) {
	return m.impl, nil
}

func (m *memTx) SetImplementation(_ context.Context, gen Generation) error {
	m.impl = gen
	return nil
}

func (m *memTx) Emit(_ context.Context, ev Event) (Event, error) {
	ev.Seq = int64(len(m.events)) + 1
	m.events = append(m.events, ev)
	return ev, nil
}
