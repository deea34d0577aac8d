package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// Domain prefixes for content hashes. The version suffix allows a future
// change of encoding without colliding with existing receipts.
const (
	DomainDonation = "savingsbank/donation/v1"
	DomainEvent    = "savingsbank/event/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DonationObject returns the canonical object form of d. Receipt is not part
// of it.
func DonationObject(d ledger.Donation) map[string]any {
	return map[string]any{
		"index":     d.Index,
		"sender":    string(d.Sender),
		"amount":    int64(d.Amount),
		"timestamp": d.Timestamp.UnixNano(),
	}
}

// DonationReceipt returns the content hash of a donation entry.
func DonationReceipt(d ledger.Donation) (string, error) {
	data, err := Marshal(DonationObject(d))
	if err != nil {
		return "", fmt.Errorf("donation receipt: %w", err)
	}
	return hashWithDomain(DomainDonation, data), nil
}

// EventPayload returns the canonical object form of the kind-specific fields
// of ev. Seq, CallID and Hash are not part of it.
func EventPayload(ev ledger.Event) map[string]any {
	p := map[string]any{}
	switch ev.Kind {
	case ledger.EventDeposited:
		p["sender"] = string(ev.Account)
		p["amount"] = int64(ev.Amount)
	case ledger.EventWithdrawn:
		p["receiver"] = string(ev.Account)
		p["amount"] = int64(ev.Amount)
	case ledger.EventPausedStatusChanged:
		p["paused"] = ev.Paused
	case ledger.EventInitialized:
		p["version"] = uint64(ev.Version)
	case ledger.EventUpgraded:
		p["implementation"] = ev.Implementation
	}
	return p
}

// EventHash returns the content hash of ev, bound to its position in the log
// and to the call that produced it.
func EventHash(ev ledger.Event) (string, error) {
	data, err := Marshal(map[string]any{
		"seq":     ev.Seq,
		"call_id": ev.CallID,
		"kind":    string(ev.Kind),
		"payload": EventPayload(ev),
	})
	if err != nil {
		return "", fmt.Errorf("event hash: %w", err)
	}
	return hashWithDomain(DomainEvent, data), nil
}
