package pricing

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/metrics"
)

// Sink receives the settled outcome of a lookup for one session. A nil
// table clears the stored one.
type Sink interface {
	ApplyPriceTable(ctx context.Context, session string, table *PriceTable) error
	LookupFailed(session string, err error)
}

// Quoter debounces voucher edits per session and applies the lookups that
// are still current when they return.
type Quoter struct {
	lookup  Lookup
	sink    Sink
	delay   time.Duration
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Debouncer
}

func NewQuoter(lookup Lookup, sink Sink, delay, timeout time.Duration, log logger.Logger) *Quoter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Quoter{
		lookup:   lookup,
		sink:     sink,
		delay:    delay,
		timeout:  timeout,
		log:      log.Named("quoter"),
		now:      time.Now,
		sessions: make(map[string]*Debouncer),
	}
}

func (q *Quoter) debouncer(session string) *Debouncer {
	q.mu.Lock()
	defer q.mu.Unlock()

	d, ok := q.sessions[session]
	if !ok {
		d = NewDebouncer(q.delay)
		d.now = q.now
		q.sessions[session] = d
	}
	return d
}

// Schedule restarts the session's quiet period; the lookup for the last
// scheduled voucher runs once input settles.
func (q *Quoter) Schedule(session, voucher, applicationType string) {
	d := q.debouncer(session)
	d.Trigger(func(gen uint64) {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()
		_, _ = q.run(ctx, d, gen, session, voucher, applicationType)
	})
}

// Quote looks the voucher up right away, superseding anything scheduled.
func (q *Quoter) Quote(ctx context.Context, session, voucher, applicationType string) (*PriceTable, error) {
	d := q.debouncer(session)
	return q.run(ctx, d, d.Next(), session, voucher, applicationType)
}

func (q *Quoter) run(ctx context.Context, d *Debouncer, gen uint64, session, voucher, applicationType string) (*PriceTable, error) {
	log := q.log.WithFields(map[string]interface{}{
		"session": session,
		"voucher": voucher,
	})

	if voucher == "" && applicationType == "" {
		metrics.VoucherLookups.WithLabelValues("skipped").Inc()
		if err := q.sink.ApplyPriceTable(ctx, session, nil); err != nil {
			log.Error("Failed to clear price table", map[string]interface{}{"error": err})
			return nil, err
		}
		return nil, nil
	}

	table, err := q.lookup.Lookup(ctx, voucher)
	if !d.Current(gen) {
		metrics.VoucherLookups.WithLabelValues("stale").Inc()
		log.Debug("Discarding superseded voucher lookup", map[string]interface{}{"generation": gen})
		return table, err
	}
	if err != nil {
		metrics.VoucherLookups.WithLabelValues("error").Inc()
		log.Error("Error fetching voucher data", map[string]interface{}{"error": err})
		stdErr := apperrors.NewVoucherLookupFailedError(voucher, err)
		q.sink.LookupFailed(session, stdErr)
		return nil, stdErr
	}

	metrics.VoucherLookups.WithLabelValues("ok").Inc()
	if err := q.sink.ApplyPriceTable(ctx, session, table); err != nil {
		log.Error("Failed to apply price table", map[string]interface{}{"error": err})
		return table, err
	}
	log.Debug("Price table updated", map[string]interface{}{
		"mainCompanyPrice":  int64(table.MainCompanyPrice),
		"childCompanyPrice": int64(table.ChildCompanyPrice),
	})
	return table, nil
}

// Forget stops and drops a session's debouncer.
func (q *Quoter) Forget(session string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if d, ok := q.sessions[session]; ok {
		d.Stop()
		delete(q.sessions, session)
	}
}

// Sweep forgets sessions with no voucher activity for longer than idle and
// reports how many were dropped. The window never drops below one quiet
// period plus the lookup timeout, so a lookup still running is kept.
func (q *Quoter) Sweep(idle time.Duration) int {
	if floor := q.delay + q.timeout; idle < floor {
		idle = floor
	}
	cutoff := q.now().Add(-idle)

	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	for session, d := range q.sessions {
		if d.LastActivity().After(cutoff) {
			continue
		}
		d.Stop()
		delete(q.sessions, session)
		dropped++
	}
	return dropped
}

// Len reports how many sessions hold a debouncer.
func (q *Quoter) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sessions)
}

// Stop cancels every pending lookup.
func (q *Quoter) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for session, d := range q.sessions {
		d.Stop()
		delete(q.sessions, session)
	}
}
