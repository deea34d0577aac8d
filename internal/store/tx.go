package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/canon"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/layout"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// Tx is one store transaction. It implements ledger.Tx.
type Tx struct {
	tx     *sql.Tx
	callID string
	layout layout.Layout
	events []ledger.Event
}

var _ ledger.Tx = (*Tx)(nil)

// Update runs fn inside a single transaction and commits if fn returns nil.
// Events emitted by fn are stamped with callID and returned after commit.
// On any error nothing fn wrote is kept.
func (s *Store) Update(ctx context.Context, callID string, fn func(tx *Tx) error) ([]ledger.Event, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update: begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	tx := &Tx{tx: sqlTx, callID: callID, layout: s.layout}
	if err := fn(tx); err != nil {
		return nil, err
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("update: commit: %w", err)
	}
	return tx.events, nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("view: begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&Tx{tx: sqlTx, layout: s.layout})
}

// State reads the ledger_state row. Fields the layout lacks read as zero.
func (t *Tx) State(ctx context.Context) (ledger.State, error) {
	var row stateRow
	names := t.layout.Names()
	targets := make([]any, len(names))
	for i, name := range names {
		target, err := row.target(name)
		if err != nil {
			return ledger.State{}, fmt.Errorf("read state: %w", err)
		}
		targets[i] = target
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = 1", strings.Join(names, ", "), layout.StateTable)
	if err := t.tx.QueryRowContext(ctx, query).Scan(targets...); err != nil {
		return ledger.State{}, fmt.Errorf("read state: %w", err)
	}
	return row.state(), nil
}

// SaveState writes every layout column of st. A non-zero value for a field
// the layout does not have is an error rather than silently dropped.
func (t *Tx) SaveState(ctx context.Context, st ledger.State) error {
	row := newStateRow(st)
	for _, name := range stateColumnNames {
		if t.layout.Has(name) {
			continue
		}
		if !row.isZero(name) {
			return fmt.Errorf("save state: %s is not in layout generation %d", name, t.layout.Generation)
		}
	}

	names := t.layout.Names()
	sets := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		v, err := row.value(name)
		if err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		sets[i] = name + " = ?"
		args[i] = v
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = 1", layout.StateTable, strings.Join(sets, ", "))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AppendDonation assigns the next index and the content receipt, then inserts.
func (t *Tx) AppendDonation(ctx context.Context, d ledger.Donation) (ledger.Donation, error) {
	var next int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations`).Scan(&next); err != nil {
		return ledger.Donation{}, fmt.Errorf("append donation: %w", err)
	}
	d.Index = next
	d.Timestamp = d.Timestamp.UTC()

	receipt, err := canon.DonationReceipt(d)
	if err != nil {
		return ledger.Donation{}, fmt.Errorf("append donation: %w", err)
	}
	d.Receipt = receipt

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO donations (idx, sender, amount, timestamp, receipt)
		VALUES (?, ?, ?, ?, ?)
	`,
		d.Index,
		string(d.Sender),
		int64(d.Amount),
		d.Timestamp.UnixNano(),
		d.Receipt,
	)
	if err != nil {
		return ledger.Donation{}, fmt.Errorf("append donation: %w", err)
	}
	return d, nil
}

// Donation reads the entry at index.
func (t *Tx) Donation(ctx context.Context, index int64) (ledger.Donation, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT idx, sender, amount, timestamp, receipt
		FROM donations
		WHERE idx = ?
	`, index)
	d, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Donation{}, fmt.Errorf("donation %d not found", index)
	}
	if err != nil {
		return ledger.Donation{}, err
	}
	return d, nil
}

// SumDonations sums every amount in the donation log.
func (t *Tx) SumDonations(ctx context.Context) (ledger.Amount, error) {
	var sum int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM donations`).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum donations: %w", err)
	}
	return ledger.Amount(sum), nil
}

// Implementation reads the installed logic generation.
func (t *Tx) Implementation(ctx context.Context) (ledger.Generation, error) {
	var gen int64
	if err := t.tx.QueryRowContext(ctx, `SELECT generation FROM implementation WHERE id = 1`).Scan(&gen); err != nil {
		return 0, fmt.Errorf("read implementation: %w", err)
	}
	return ledger.Generation(gen), nil
}

// SetImplementation records the installed logic generation.
func (t *Tx) SetImplementation(ctx context.Context, gen ledger.Generation) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE implementation SET generation = ? WHERE id = 1`, int64(gen)); err != nil {
		return fmt.Errorf("set implementation: %w", err)
	}
	return nil
}

// Emit appends ev to the events log with the next seq and the call ID of
// this transaction, and returns it with Seq, CallID and Hash set.
func (t *Tx) Emit(ctx context.Context, ev ledger.Event) (ledger.Event, error) {
	var seq int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events`).Scan(&seq); err != nil {
		return ledger.Event{}, fmt.Errorf("emit %s: %w", ev.Kind, err)
	}
	ev.Seq = seq
	ev.CallID = t.callID

	payload, err := marshalPayload(ev)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("emit %s: %w", ev.Kind, err)
	}
	hash, err := canon.EventHash(ev)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("emit %s: %w", ev.Kind, err)
	}
	ev.Hash = hash

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO events (seq, call_id, kind, payload, hash)
		VALUES (?, ?, ?, ?, ?)
	`,
		ev.Seq,
		ev.CallID,
		string(ev.Kind),
		payload,
		ev.Hash,
	)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("emit %s: %w", ev.Kind, err)
	}

	t.events = append(t.events, ev)
	return ev, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(r rowScanner) (ledger.Donation, error) {
	var (
		d      ledger.Donation
		sender string
		amount int64
		nanos  int64
	)
	if err := r.Scan(&d.Index, &sender, &amount, &nanos, &d.Receipt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Donation{}, err
		}
		return ledger.Donation{}, fmt.Errorf("scan donation: %w", err)
	}
	d.Sender = ledger.Identity(sender)
	d.Amount = ledger.Amount(amount)
	d.Timestamp = time.Unix(0, nanos).UTC()
	return d, nil
}
