// Package bank assembles the savings ledger: configuration, logging, the
// SQLite store and the dispatcher, behind a typed call API.
package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/config"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/store"
)

// Options override collaborators. Zero fields take defaults.
type Options struct {
	// Logger defaults to a text handler on stderr at the configured level.
	Logger *slog.Logger

	// Registerer receives the dispatcher metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Transferer moves withdrawn value to the owner. The default only logs
	// the release and always succeeds.
	Transferer ledger.Transferer

	Clock dispatch.Clock
	IDs   dispatch.IDGenerator
}

// Bank is a running ledger.
type Bank struct {
	logger     *slog.Logger
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	cancel     context.CancelFunc
	done       chan error

	closeOnce sync.Once
	closeErr  error
}

// NewLogger builds the text logger described by cfg, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// Open validates cfg, opens the store and starts the dispatcher.
// Close must be called to stop it.
func Open(cfg *config.Config, opts Options) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg, os.Stderr)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database ready", "layout_generation", st.Layout().Generation)

	transferer := opts.Transferer
	if transferer == nil {
		transferer = loggingTransferer(logger)
	}

	dopts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithQueueCapacity(cfg.QueueCapacity),
	}
	if opts.Registerer != nil {
		dopts = append(dopts, dispatch.WithMetrics(opts.Registerer, cfg.MetricsNamespace))
	}
	if opts.Clock != nil {
		dopts = append(dopts, dispatch.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		dopts = append(dopts, dispatch.WithIDGenerator(opts.IDs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bank{
		logger:     logger,
		store:      st,
		dispatcher: dispatch.New(st, transferer, dopts...),
		cancel:     cancel,
		done:       make(chan error, 1),
	}
	go func() { b.done <- b.dispatcher.Run(ctx) }()

	return b, nil
}

// Close lets queued calls finish, stops the dispatcher and closes the store.
// Later calls return the result of the first.
func (b *Bank) Close() error {
	b.closeOnce.Do(func() { b.closeErr = b.close() })
	return b.closeErr
}

func (b *Bank) close() error {
	b.dispatcher.Stop()
	runErr := <-b.done
	b.cancel()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	closeErr := b.store.Close()
	if closeErr != nil {
		b.logger.Error("error closing database", "error", closeErr)
	}
	return errors.Join(runErr, closeErr)
}

func loggingTransferer(logger *slog.Logger) ledger.Transferer {
	return ledger.TransferFunc(func(_ context.Context, to ledger.Identity, amount ledger.Amount) error {
		logger.Info("releasing custody", "to", to, "amount", amount)
		return nil
	})
}

// Subscribe registers fn for every committed event. See dispatch.Subscriber.
func (b *Bank) Subscribe(fn dispatch.Subscriber) func() {
	return b.dispatcher.Subscribe(fn)
}

// Events returns the persisted events after seq afterSeq.
func (b *Bank) Events(ctx context.Context, afterSeq int64) ([]ledger.Event, error) {
	return b.store.Events(ctx, afterSeq)
}

// Donations returns the whole donation log.
func (b *Bank) Donations(ctx context.Context) ([]ledger.Donation, error) {
	return b.store.Donations(ctx)
}

// Audit recomputes receipts and hashes and checks the ledger counters.
func (b *Bank) Audit(ctx context.Context) error {
	return b.store.Audit(ctx)
}

// Submit forwards a raw call.
func (b *Bank) Submit(ctx context.Context, call dispatch.Call) (dispatch.Result, error) {
	return b.dispatcher.Submit(ctx, call)
}
