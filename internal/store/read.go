package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/canon"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// Snapshot returns the scalar ledger fields outside any call.
func (s *Store) Snapshot(ctx context.Context) (ledger.State, error) {
	var st ledger.State
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		st, err = tx.State(ctx)
		return err
	})
	return st, err
}

// Donations returns the whole donation log in index order.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) Donations(ctx context.Context) ([]ledger.Donation, error) {
	var donations []ledger.Donation
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		donations, err = tx.Donations(ctx)
		return err
	})
	return donations, err
}

// Donations returns the donation log as seen by this transaction.
func (t *Tx) Donations(ctx context.Context) ([]ledger.Donation, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT idx, sender, amount, timestamp, receipt
		FROM donations
		ORDER BY idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query donations: %w", err)
	}
	defer rows.Close()

	donations := []ledger.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return donations, nil
}

// LastDonationTime returns the timestamp of the newest donation, or the zero
// time if the log is empty.
func (s *Store) LastDonationTime(ctx context.Context) (time.Time, error) {
	var nanos sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM donations`).Scan(&nanos)
	if err != nil {
		return time.Time{}, fmt.Errorf("last donation time: %w", err)
	}
	if !nanos.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos.Int64).UTC(), nil
}

// Events returns every event with seq greater than afterSeq, in seq order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Events(ctx context.Context, afterSeq int64) ([]ledger.Event, error) {
	var events []ledger.Event
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		events, err = tx.Events(ctx, afterSeq)
		return err
	})
	return events, err
}

// Events returns the committed events after afterSeq as seen by this
// transaction. Events emitted by the transaction itself are included.
func (t *Tx) Events(ctx context.Context, afterSeq int64) ([]ledger.Event, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT seq, call_id, kind, payload, hash
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		var (
			ev      ledger.Event
			kind    string
			payload string
		)
		if err := rows.Scan(&ev.Seq, &ev.CallID, &kind, &payload, &ev.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ledger.EventKind(kind)
		if err := unmarshalPayload(&ev, payload); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Audit recomputes every donation receipt and event hash and checks the
// ledger counters against the donation log. It returns the first
// discrepancy found.
//
// Every read happens in one transaction, so concurrent commits cannot skew
// the counters against the log.
func (s *Store) Audit(ctx context.Context) error {
	return s.View(ctx, func(tx *Tx) error {
		if err := auditTx(ctx, tx); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		return nil
	})
}

func auditTx(ctx context.Context, tx *Tx) error {
	st, err := tx.State(ctx)
	if err != nil {
		return err
	}
	donations, err := tx.Donations(ctx)
	if err != nil {
		return err
	}

	var sum ledger.Amount
	for i, d := range donations {
		if d.Index != int64(i) {
			return fmt.Errorf("donation at position %d has index %d", i, d.Index)
		}
		if i > 0 && d.Timestamp.Before(donations[i-1].Timestamp) {
			return fmt.Errorf("donation %d is older than donation %d", i, i-1)
		}
		receipt, err := canon.DonationReceipt(d)
		if err != nil {
			return err
		}
		if receipt != d.Receipt {
			return fmt.Errorf("donation %d receipt mismatch", i)
		}
		sum += d.Amount
	}

	if st.DepositCount != int64(len(donations)) {
		return fmt.Errorf("deposit count %d, donation log has %d entries", st.DepositCount, len(donations))
	}
	if st.InitGeneration >= ledger.Gen2 && st.TotalDonated != sum {
		return fmt.Errorf("total donated %d, donation log sums to %d", st.TotalDonated, sum)
	}

	events, err := tx.Events(ctx, 0)
	if err != nil {
		return err
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			return fmt.Errorf("event at position %d has seq %d", i, ev.Seq)
		}
		hash, err := canon.EventHash(ev)
		if err != nil {
			return err
		}
		if hash != ev.Hash {
			return fmt.Errorf("event %d hash mismatch", ev.Seq)
		}
	}
	return nil
}
