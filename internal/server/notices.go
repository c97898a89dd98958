package server

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/store"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// PaymentSucceededMessage is shown when the user returns from the payment
// page with status=200.
const PaymentSucceededMessage = "お支払いが成功しました"

const maxNotices = 20

// Notice is a toast-style message for the front end.
type Notice struct {
	Level   NoticeLevel         `json:"level"`
	Message string              `json:"message"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
}

// Notices queues messages per session until the next response drains them.
type Notices struct {
	mu      sync.Mutex
	pending map[string][]Notice
	pushed  map[string]time.Time
	now     func() time.Time
}

func NewNotices() *Notices {
	return &Notices{
		pending: make(map[string][]Notice),
		pushed:  make(map[string]time.Time),
		now:     time.Now,
	}
}

func (n *Notices) Push(session string, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := append(n.pending[session], notice)
	if len(q) > maxNotices {
		q = q[len(q)-maxNotices:]
	}
	n.pending[session] = q
	n.pushed[session] = n.now()
}

// PushError queues err's user-facing message.
func (n *Notices) PushError(session string, err error) {
	stdErr := apperrors.AsStandard(err)
	n.Push(session, Notice{Level: NoticeError, Message: stdErr.Message, Code: stdErr.Code})
}

// Drain returns and forgets the session's pending notices.
func (n *Notices) Drain(session string) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := n.pending[session]
	delete(n.pending, session)
	delete(n.pushed, session)
	if q == nil {
		return []Notice{}
	}
	return q
}

// Discard removes the most recent pending notice with the given code.
func (n *Notices) Discard(session string, code apperrors.ErrorCode) {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := n.pending[session]
	for i := len(q) - 1; i >= 0; i-- {
		if q[i].Code == code {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(n.pending, session)
		delete(n.pushed, session)
		return
	}
	n.pending[session] = q
}

// Sweep drops notices nobody collected within idle of being queued.
func (n *Notices) Sweep(idle time.Duration) int {
	cutoff := n.now().Add(-idle)

	n.mu.Lock()
	defer n.mu.Unlock()

	dropped := 0
	for session, at := range n.pushed {
		if at.After(cutoff) {
			continue
		}
		delete(n.pending, session)
		delete(n.pushed, session)
		dropped++
	}
	return dropped
}

// Len reports how many sessions have pending notices.
func (n *Notices) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// QuoteSink applies settled voucher lookups to the session's draft and turns
// failures into notices.
type QuoteSink struct {
	store   *store.Store
	notices *Notices
}

var _ pricing.Sink = (*QuoteSink)(nil)

func NewQuoteSink(st *store.Store, notices *Notices) *QuoteSink {
	return &QuoteSink{store: st, notices: notices}
}

func (q *QuoteSink) ApplyPriceTable(ctx context.Context, session string, table *pricing.PriceTable) error {
	_, err := q.store.Session(session).ApplyPriceTable(ctx, table)
	return err
}

func (q *QuoteSink) LookupFailed(session string, err error) {
	q.notices.PushError(session, err)
}
