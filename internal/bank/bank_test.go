package bank

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/config"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
	tu "github.com/MariiaFi/UpgradeableSavingsBank/internal/testutil"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "bank.db")
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBank_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	transfer := &tu.ScriptedTransferer{}
	ctx := context.Background()

	b, err := Open(cfg, Options{
		Logger:     quietLogger(),
		Registerer: reg,
		Transferer: transfer,
		Clock:      tu.NewDeterministicClock(t0, time.Second),
		IDs:        tu.NewSequentialIDGenerator("bank"),
	})
	require.NoError(t, err)

	require.NoError(t, b.Initialize(ctx, "alice"))
	d, err := b.Deposit(ctx, "bob", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Index)

	_, err = b.TotalDonated(ctx)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeUnsupported))

	version, err := b.UpgradeAndCall(ctx, "alice", ledger.Gen2)
	require.NoError(t, err)
	assert.Equal(t, "V2", version)

	err = b.Reinitialize(ctx, "alice")
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeGenerationMismatch))

	_, err = b.Deposit(ctx, "carol", 50)
	require.NoError(t, err)

	total, err := b.TotalDonated(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(150), total)

	paused, err := b.TogglePause(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, paused)
	_, err = b.Deposit(ctx, "dave", 1)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodePaused))

	withdrawn, err := b.Withdraw(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(150), withdrawn)
	assert.Equal(t, ledger.Amount(150), transfer.Delivered())

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "savingsbank_balance"))
	assert.Equal(t, float64(0), gaugeValue(t, reg, "savingsbank_balance"))
	assert.Equal(t, float64(2), gaugeValue(t, reg, "savingsbank_generation"))

	require.NoError(t, b.Audit(ctx))
	require.NoError(t, b.Close())

	// State survives a restart.
	b, err = Open(cfg, Options{Logger: quietLogger()})
	require.NoError(t, err)

	count, err := b.DepositCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	isPaused, err := b.IsPaused(ctx)
	require.NoError(t, err)
	assert.True(t, isPaused)

	gen, err := b.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Gen2, gen)

	v, err := b.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "V2", v)

	balance, err := b.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(0), balance)

	first, err := b.Donation(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, ledger.Identity("bob"), first.Sender)
	assert.Equal(t, t0.Add(time.Second), first.Timestamp)

	_, err = b.Donation(ctx, 2)
	assert.True(t, ledger.IsCode(err, ledger.ErrCodeIndexOutOfRange))

	donations, err := b.Donations(ctx)
	require.NoError(t, err)
	assert.Len(t, donations, 2)

	events, err := b.Events(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "bank-1", events[0].CallID)

	require.NoError(t, b.Close())
}

func TestBank_SubscribeAndDefaultTransferer(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx := context.Background()

	b, err := Open(testConfig(t), Options{Logger: logger})
	require.NoError(t, err)
	defer b.Close()

	var kinds []ledger.EventKind
	unsubscribe := b.Subscribe(func(ev ledger.Event) { kinds = append(kinds, ev.Kind) })

	require.NoError(t, b.Initialize(ctx, "alice"))
	_, err = b.Deposit(ctx, "bob", 5)
	require.NoError(t, err)
	_, err = b.Withdraw(ctx, "alice")
	require.NoError(t, err)

	unsubscribe()
	_, err = b.Deposit(ctx, "bob", 5)
	require.NoError(t, err)

	assert.Equal(t, []ledger.EventKind{ledger.EventInitialized, ledger.EventDeposited, ledger.EventWithdrawn}, kinds)
	assert.Contains(t, logs.String(), "releasing custody")
}

func TestBank_CloseTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b, err := Open(testConfig(t), Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background(), "alice"))
	require.NoError(t, b.Close())

	second := make(chan error, 1)
	go func() { second <- b.Close() }()
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second Close blocked")
	}

	_, err = b.Balance(context.Background())
	assert.ErrorIs(t, err, dispatch.ErrStopped)
}

func TestBank_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueueCapacity = 0
	_, err := Open(cfg, Options{})
	assert.ErrorContains(t, err, "queueCapacity")
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}
