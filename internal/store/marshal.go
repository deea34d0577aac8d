package store

import (
	"encoding/json"
	"fmt"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/canon"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// marshalPayload converts the kind-specific fields of ev to canonical JSON
// TEXT for storage.
func marshalPayload(ev ledger.Event) (string, error) {
	data, err := canon.Marshal(canon.EventPayload(ev))
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// eventPayload is the union of every payload key written by marshalPayload.
type eventPayload struct {
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Amount         int64  `json:"amount"`
	Paused         bool   `json:"paused"`
	Version        uint64 `json:"version"`
	Implementation string `json:"implementation"`
}

// unmarshalPayload fills the kind-specific fields of ev from stored TEXT.
func unmarshalPayload(ev *ledger.Event, data string) error {
	var p eventPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	switch ev.Kind {
	case ledger.EventDeposited:
		ev.Account = ledger.Identity(p.Sender)
		ev.Amount = ledger.Amount(p.Amount)
	case ledger.EventWithdrawn:
		ev.Account = ledger.Identity(p.Receiver)
		ev.Amount = ledger.Amount(p.Amount)
	case ledger.EventPausedStatusChanged:
		ev.Paused = p.Paused
	case ledger.EventInitialized:
		ev.Version = ledger.Generation(p.Version)
	case ledger.EventUpgraded:
		ev.Implementation = p.Implementation
	default:
		return fmt.Errorf("unmarshal payload: unknown event kind %q", ev.Kind)
	}
	return nil
}
