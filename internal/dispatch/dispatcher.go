package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/store"
)

// ErrStopped is returned by Submit once the dispatcher no longer accepts or
// executes calls.
var ErrStopped = errors.New("dispatcher stopped")

// Subscriber receives committed events in seq order.
type Subscriber func(ev ledger.Event)

type request struct {
	id    string
	call  Call
	reply chan outcomeMsg // buffered, size 1
}

type outcomeMsg struct {
	result Result
	err    error
}

// Dispatcher is the single-writer call loop in front of the ledger store.
//
// Every call, read or write, is executed by the Run goroutine in submission
// order, each inside its own store transaction. Calls are forwarded to the
// installed logic unmodified; the dispatcher only adds the call ID and the
// execution timestamp.
//
// Thread-safety model:
//   - Submit(), Subscribe(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Dispatcher struct {
	store      *store.Store
	transferer ledger.Transferer
	clock      Clock
	ids        IDGenerator
	logger     *slog.Logger
	metrics    *dispatchMetrics
	queue      *callQueue

	// lastStamp is the newest timestamp handed to a deposit. Only Run
	// touches it.
	lastStamp time.Time

	// released is the amount the transferer delivered during the current
	// call. Only Run touches it.
	released ledger.Amount

	mu          sync.Mutex
	subscribers map[int]Subscriber
	nextSub     int

	registerer prometheus.Registerer
	namespace  string
	capacity   int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock deposits are stamped with. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithIDGenerator sets the call ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(d *Dispatcher) {
		d.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMetrics registers the dispatcher metrics on reg under namespace.
// Without it no metrics are collected.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(d *Dispatcher) {
		d.registerer = reg
		d.namespace = namespace
	}
}

// WithQueueCapacity preallocates room for n pending calls. The queue still
// grows past n.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) {
		d.capacity = n
	}
}

// New creates a Dispatcher over s. transferer performs the value transfer of
// withdraw calls.
func New(s *store.Store, transferer ledger.Transferer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       s,
		transferer:  transferer,
		clock:       SystemClock{},
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
		subscribers: make(map[int]Subscriber),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registerer != nil {
		d.metrics = &dispatchMetrics{}
		d.metrics.init(d.registerer, d.namespace)
	}
	d.queue = newCallQueue(d.capacity)
	return d
}

// Submit enqueues call and waits for its result.
//
// The caller is normalized with ledger.NormalizeIdentity first. A blank
// caller becomes the zero identity, which every write rejects as
// Unauthorized.
//
// If ctx ends first, Submit returns ctx.Err() but the call stays queued and
// will still commit or fail atomically.
func (d *Dispatcher) Submit(ctx context.Context, call Call) (Result, error) {
	call.Caller = ledger.NormalizeIdentity(string(call.Caller))
	req := &request{
		id:    d.ids.Generate(),
		call:  call,
		reply: make(chan outcomeMsg, 1),
	}
	if !d.queue.Enqueue(req) {
		return Result{}, ErrStopped
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-req.reply:
		return out.result, out.err
	}
}

// Subscribe registers fn for every event committed from now on. The returned
// function removes the subscription.
//
// Subscribers run on the Run goroutine and must not call Submit.
func (d *Dispatcher) Subscribe(fn Subscriber) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subscribers, id)
	}
}

// Run executes queued calls until ctx is cancelled or Stop is called.
//
// After Stop, calls already queued still run before Run returns nil. On
// cancellation the remaining calls fail with ErrStopped and Run returns
// ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting")

	last, err := d.store.LastDonationTime(ctx)
	if err != nil {
		d.queue.Close()
		d.drain()
		return fmt.Errorf("dispatcher start: %w", err)
	}
	d.lastStamp = last

	for {
		if req, ok := d.queue.TryDequeue(); ok {
			d.handle(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping: context cancelled")
			d.queue.Close()
			d.drain()
			return ctx.Err()

		case <-d.queue.Wait():
			if d.queue.Done() {
				d.logger.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the calls already queued are done.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

func (d *Dispatcher) drain() {
	for {
		req, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		req.reply <- outcomeMsg{err: ErrStopped}
	}
}

// handle executes one request and replies.
// Called only from the Run goroutine.
func (d *Dispatcher) handle(ctx context.Context, req *request) {
	call := req.call
	d.logger.Debug("call",
		"call_id", req.id,
		"op", call.Op,
		"caller", call.Caller,
	)

	res, st, err := d.execute(ctx, req)
	d.metrics.observeCall(call.Op, err)

	if err != nil {
		d.logger.Warn("call failed",
			"call_id", req.id,
			"op", call.Op,
			"caller", call.Caller,
			"code", ledger.CodeOf(err),
			"error", err,
		)
		req.reply <- outcomeMsg{err: err}
		return
	}

	if !call.Op.ReadOnly() {
		d.metrics.observeCommit(res.Events, st)
		d.publish(res.Events)
	}
	req.reply <- outcomeMsg{result: res}
}

func (d *Dispatcher) execute(ctx context.Context, req *request) (Result, ledger.State, error) {
	call := req.call
	res := Result{CallID: req.id}
	if !call.Op.Valid() {
		return Result{}, ledger.State{}, fmt.Errorf("unknown operation %q", call.Op)
	}

	if call.Op.ReadOnly() {
		err := d.store.View(ctx, func(tx *store.Tx) error {
			return d.read(ctx, tx, call, &res)
		})
		return res, ledger.State{}, err
	}

	now := d.stamp()
	d.released = 0
	var st ledger.State
	events, err := d.store.Update(ctx, req.id, func(tx *store.Tx) error {
		if err := d.write(ctx, tx, call, now, &res); err != nil {
			return err
		}
		var err error
		st, err = tx.State(ctx)
		return err
	})
	if err != nil {
		if d.released > 0 {
			// Value left custody but the balance and the Withdrawn event
			// were rolled back.
			d.logger.Error("withdrawal transferred but not committed",
				"call_id", req.id,
				"to", call.Caller,
				"amount", d.released,
				"error", err,
			)
		}
		return Result{}, ledger.State{}, err
	}
	if call.Op == OpDeposit {
		d.lastStamp = now
	}
	res.Events = events
	return res, st, nil
}

// release runs the configured transferer and records what it delivered.
func (d *Dispatcher) release(ctx context.Context, to ledger.Identity, amount ledger.Amount) error {
	if err := d.transferer.Transfer(ctx, to, amount); err != nil {
		return err
	}
	d.released = amount
	return nil
}

// stamp returns the clock reading, held back to the newest stamp already
// used so donation timestamps never decrease.
func (d *Dispatcher) stamp() time.Time {
	now := d.clock.Now().UTC()
	if now.Before(d.lastStamp) {
		return d.lastStamp
	}
	return now
}

func (d *Dispatcher) write(ctx context.Context, tx *store.Tx, call Call, now time.Time, res *Result) error {
	switch call.Op {
	case OpInitialize:
		return ledger.Initialize(ctx, tx, call.Caller)

	case OpReinitialize:
		logic, err := ledger.ActiveLogic(ctx, tx)
		if err != nil {
			return err
		}
		if err := ledger.Reinitialize(ctx, tx, call.Caller, logic); err != nil {
			return err
		}
		res.Generation = logic.Generation()
		return nil

	case OpUpgrade, OpUpgradeAndCall:
		upgrade := ledger.AuthorizeUpgrade
		if call.Op == OpUpgradeAndCall {
			upgrade = ledger.UpgradeToAndCall
		}
		logic, err := upgrade(ctx, tx, call.Caller, call.Target)
		if err != nil {
			return err
		}
		res.Version = logic.Version()
		res.Generation = logic.Generation()
		return nil
	}

	logic, err := ledger.ActiveLogic(ctx, tx)
	if err != nil {
		return err
	}

	switch call.Op {
	case OpDeposit:
		res.Donation, err = logic.Deposit(ctx, tx, call.Caller, call.Value, now)
	case OpWithdraw:
		res.Amount, err = logic.Withdraw(ctx, tx, call.Caller, ledger.TransferFunc(d.release))
	case OpTogglePause:
		res.Paused, err = logic.TogglePause(ctx, tx, call.Caller)
	default:
		err = fmt.Errorf("operation %q is not a write", call.Op)
	}
	return err
}

func (d *Dispatcher) read(ctx context.Context, tx *store.Tx, call Call, res *Result) error {
	logic, err := ledger.ActiveLogic(ctx, tx)
	if err != nil {
		return err
	}

	switch call.Op {
	case OpBalance:
		res.Amount, err = ledger.Balance(ctx, tx)
	case OpDepositCount:
		res.Count, err = ledger.TotalDeposits(ctx, tx)
	case OpTotalDonated:
		res.Amount, err = logic.TotalDonated(ctx, tx)
	case OpIsPaused:
		res.Paused, err = logic.IsPaused(ctx, tx)
	case OpDonation:
		res.Donation, err = ledger.GetDonation(ctx, tx, call.Index)
	case OpVersion:
		res.Version = logic.Version()
	case OpGeneration:
		var st ledger.State
		st, err = tx.State(ctx)
		res.Generation = st.InitGeneration
	default:
		err = fmt.Errorf("operation %q is not a read", call.Op)
	}
	return err
}

func (d *Dispatcher) publish(events []ledger.Event) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	subs := make([]Subscriber, 0, len(d.subscribers))
	for id := 0; id < d.nextSub; id++ {
		if fn, ok := d.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	d.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
