package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Identity names a caller. The zero Identity is the empty string and never
// owns anything.
type Identity string

// NormalizeIdentity trims and NFC-normalizes s. Visually identical
// identities therefore compare equal at the owner gate. A blank s yields the
// zero Identity.
func NormalizeIdentity(s string) Identity {
	return Identity(norm.NFC.String(strings.TrimSpace(s)))
}

// ParseIdentity is NormalizeIdentity that rejects the zero Identity.
func ParseIdentity(s string) (Identity, error) {
	id := NormalizeIdentity(s)
	if id.IsZero() {
		return "", fmt.Errorf("identity must not be empty")
	}
	return id, nil
}

// IsZero reports whether id is the empty identity.
func (id Identity) IsZero() bool {
	return id == ""
}

func (id Identity) String() string {
	return string(id)
}

// Amount is a quantity of base value units.
type Amount int64

// add returns a+b, failing with InvalidAmount on int64 overflow.
func (a Amount) add(b Amount) (Amount, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, &Error{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("amount %d would overflow running total %d", b, a),
		}
	}
	return a + b, nil
}

// Generation numbers a version of the active logic.
type Generation uint64

const (
	// GenUninitialized is the generation of a store no initializer has touched.
	GenUninitialized Generation = 0

	// Gen1 is the original logic: deposits, withdrawals, donation history.
	Gen1 Generation = 1

	// Gen2 adds total tracking and the pause switch.
	Gen2 Generation = 2

	// LatestGeneration is the highest generation this build knows.
	LatestGeneration = Gen2
)

// Donation is one immutable entry in the donation log.
// Index is its permanent position in the log.
type Donation struct {
	Index     int64     `json:"index"`
	Sender    Identity  `json:"sender"`
	Amount    Amount    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Receipt   string    `json:"receipt"`
}

// State is the scalar part of the ledger store.
//
// Fields are listed in layout order. TotalDonated and Paused exist from
// generation 2; under an older layout they read as their zero values.
type State struct {
	Owner          Identity
	DepositCount   int64
	Balance        Amount
	InitGeneration Generation
	TotalDonated   Amount
	Paused         bool
}

// Initialized reports whether Initialize has run.
func (s State) Initialized() bool {
	return s.InitGeneration >= Gen1
}
