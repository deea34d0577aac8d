package ledger

// EventKind names an outbound notification.
type EventKind string

const (
	EventDeposited           EventKind = "Deposited"
	EventWithdrawn           EventKind = "Withdrawn"
	EventPausedStatusChanged EventKind = "PausedStatusChanged"
	EventInitialized         EventKind = "Initialized"
	EventUpgraded            EventKind = "Upgraded"
)

// Event is one notification emitted by a successful operation.
//
// Only the fields relevant to Kind are set:
//   - Deposited: Account (sender), Amount
//   - Withdrawn: Account (receiver), Amount
//   - PausedStatusChanged: Paused
//   - Initialized: Version
//   - Upgraded: Implementation
//
// Seq, CallID and Hash are assigned by the store when the event is appended.
type Event struct {
	Seq            int64      `json:"seq"`
	CallID         string     `json:"call_id"`
	Kind           EventKind  `json:"kind"`
	Account        Identity   `json:"account,omitempty"`
	Amount         Amount     `json:"amount,omitempty"`
	Paused         bool       `json:"paused,omitempty"`
	Version        Generation `json:"version,omitempty"`
	Implementation string     `json:"implementation,omitempty"`
	Hash           string     `json:"hash"`
}

// Deposited builds a Deposited event.
func Deposited(sender Identity, amount Amount) Event {
	return Event{Kind: EventDeposited, Account: sender, Amount: amount}
}

// Withdrawn builds a Withdrawn event.
func Withdrawn(receiver Identity, amount Amount) Event {
	return Event{Kind: EventWithdrawn, Account: receiver, Amount: amount}
}

// PausedStatusChanged builds a PausedStatusChanged event.
func PausedStatusChanged(paused bool) Event {
	return Event{Kind: EventPausedStatusChanged, Paused: paused}
}

// Initialized builds an Initialized event.
func Initialized(version Generation) Event {
	return Event{Kind: EventInitialized, Version: version}
}

// Upgraded builds an Upgraded event.
func Upgraded(implementation string) Event {
	return Event{Kind: EventUpgraded, Implementation: implementation}
}
