// Package store persists form drafts and the last quoted price table, one
// pair of keys per session.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amcolab/sell-bot/internal/common/config"
	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/metrics"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
)

// Store hands out one FormStore per session.
type Store struct {
	backend Backend
	engine  *form.Engine
	cfg     config.StorageConfig
	log     logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*FormStore
}

func New(backend Backend, engine *form.Engine, cfg config.StorageConfig, log logger.Logger) *Store {
	if cfg.FormKey == "" {
		cfg.FormKey = "formData"
	}
	if cfg.PriceTableKey == "" {
		cfg.PriceTableKey = "priceTable"
	}
	return &Store{
		backend:  backend,
		engine:   engine,
		cfg:      cfg,
		log:      log.Named("store"),
		now:      time.Now,
		sessions: make(map[string]*FormStore),
	}
}

// Session returns the store for one session, creating it on first use.
func (s *Store) Session(id string) *FormStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.sessions[id]
	if !ok {
		fs = &FormStore{
			parent:   s,
			session:  id,
			formKey:  s.cfg.FormKeyFor(id),
			priceKey: s.cfg.PriceTableKeyFor(id),
			log:      s.log.WithFields(map[string]interface{}{"session": id}),
		}
		s.sessions[id] = fs
	}
	fs.lastUsed.Store(s.now().UnixNano())
	return fs
}

// Release drops the in-process handle for a session. The stored draft is
// untouched; the next Session call starts a fresh handle.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep releases every session untouched for longer than idle whose lock is
// free, and reports how many were dropped.
func (s *Store) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle).UnixNano()
	dropped := 0
	for id, fs := range s.sessions {
		if fs.lastUsed.Load() > cutoff || !fs.mu.TryLock() {
			continue
		}
		delete(s.sessions, id)
		fs.mu.Unlock()
		dropped++
	}
	return dropped
}

// Len reports how many session handles are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// FormStore is the single writer for one session's draft. Every method takes
// the session lock, so a read-modify-write never interleaves with another.
type FormStore struct {
	parent   *Store
	session  string
	formKey  string
	priceKey string
	log      logger.Logger

	mu       sync.Mutex
	lastUsed atomic.Int64
}

func (f *FormStore) Session() string { return f.session }

// Load reads the draft. A missing or undecodable draft yields defaults; only
// backend failures are returned. The draft comes back re-derived against the
// stored price table, so drafts written by older clients satisfy the same
// rules as edited ones.
func (f *FormStore) Load(ctx context.Context) (*form.FormState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, _, err := f.load(ctx)
	return state, err
}

func (f *FormStore) load(ctx context.Context) (*form.FormState, *pricing.PriceTable, error) {
	state, err := f.loadDraft(ctx)
	if err != nil {
		return nil, nil, err
	}
	table, err := f.loadPriceTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	if rules := f.parent.engine.Derive(nil, state, table); len(rules) > 0 {
		f.log.Debug("Stored draft re-derived", map[string]interface{}{"rules": rules})
	}
	return state, table, nil
}

func (f *FormStore) loadDraft(ctx context.Context) (*form.FormState, error) {
	raw, err := f.parent.backend.Get(ctx, f.formKey)
	if errors.Is(err, ErrNotFound) {
		return form.Defaults(f.parent.now()), nil
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("load form", err)
	}

	state, err := decodeForm(raw, f.parent.now())
	if err != nil {
		stdErr := apperrors.NewFormStateCorruptError(err)
		f.log.Error("Discarding stored form data", map[string]interface{}{
			"code":  stdErr.Code,
			"error": err.Error(),
		})
		metrics.StateRecoveries.Inc()
		return form.Defaults(f.parent.now()), nil
	}
	return state, nil
}

// Save overwrites the draft with state.
func (f *FormStore) Save(ctx context.Context, state *form.FormState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(ctx, state)
}

func (f *FormStore) save(ctx context.Context, state *form.FormState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := f.parent.backend.Set(ctx, f.formKey, data, f.parent.cfg.TTL()); err != nil {
		return apperrors.NewStorageUnavailableError("save form", err)
	}
	return nil
}

// SavePartial writes one leaf, creating intermediate subsidiaries as needed,
// and saves the whole draft. No derivation runs.
func (f *FormStore) SavePartial(ctx context.Context, p form.Path, value string) (*form.FormState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, _, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := state.Set(p, value); err != nil {
		return nil, err
	}
	if err := f.save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Update runs fn against the current draft and saves what it returns.
func (f *FormStore) Update(ctx context.Context, fn func(*form.FormState, *pricing.PriceTable) (*form.FormState, error)) (*form.FormState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, table, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(state, table)
	if err != nil {
		return nil, err
	}
	if err := f.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Edit applies a field edit through the derivation engine and saves the
// result.
func (f *FormStore) Edit(ctx context.Context, p form.Path, raw string) (*form.FormState, []form.Rule, error) {
	var rules []form.Rule
	next, err := f.Update(ctx, func(s *form.FormState, table *pricing.PriceTable) (*form.FormState, error) {
		next, applied, err := f.parent.engine.Edit(s, p, raw, table)
		rules = applied
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}
	f.record(p, rules)
	return next, rules, nil
}

// Blur applies the leave-field normalization at p and saves the result.
func (f *FormStore) Blur(ctx context.Context, p form.Path) (*form.FormState, []form.Rule, error) {
	var rules []form.Rule
	next, err := f.Update(ctx, func(s *form.FormState, table *pricing.PriceTable) (*form.FormState, error) {
		next, applied, err := f.parent.engine.Blur(s, p, table)
		rules = applied
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}
	for _, r := range rules {
		metrics.DerivationsApplied.WithLabelValues(string(r)).Inc()
	}
	return next, rules, nil
}

func (f *FormStore) record(p form.Path, rules []form.Rule) {
	metrics.FieldEdits.WithLabelValues(p.Group()).Inc()
	for _, r := range rules {
		metrics.DerivationsApplied.WithLabelValues(string(r)).Inc()
	}
	if len(rules) > 0 {
		f.log.Debug("Derivations applied", map[string]interface{}{
			"path":  p.String(),
			"rules": rules,
		})
	}
}

// ApplyPriceTable stores table (nil clears it) and reprices the draft.
func (f *FormStore) ApplyPriceTable(ctx context.Context, table *pricing.PriceTable) (*form.FormState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.savePriceTable(ctx, table); err != nil {
		return nil, err
	}
	state, err := f.loadDraft(ctx)
	if err != nil {
		return nil, err
	}
	rules := f.parent.engine.Derive(nil, state, table)
	for _, r := range rules {
		metrics.DerivationsApplied.WithLabelValues(string(r)).Inc()
	}
	if len(rules) > 0 {
		if err := f.save(ctx, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// LoadPriceTable returns the last stored table, or nil when there is none
// or it cannot be decoded.
func (f *FormStore) LoadPriceTable(ctx context.Context) (*pricing.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadPriceTable(ctx)
}

func (f *FormStore) loadPriceTable(ctx context.Context) (*pricing.PriceTable, error) {
	raw, err := f.parent.backend.Get(ctx, f.priceKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailableError("load price table", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var table pricing.PriceTable
	if err := json.Unmarshal(raw, &table); err != nil {
		f.log.Warn("Discarding stored price table", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return &table, nil
}

// SavePriceTable stores table; nil removes the key.
func (f *FormStore) SavePriceTable(ctx context.Context, table *pricing.PriceTable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.savePriceTable(ctx, table)
}

func (f *FormStore) savePriceTable(ctx context.Context, table *pricing.PriceTable) error {
	if table == nil {
		if err := f.parent.backend.Del(ctx, f.priceKey); err != nil {
			return apperrors.NewStorageUnavailableError("clear price table", err)
		}
		return nil
	}
	data, err := json.Marshal(table)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := f.parent.backend.Set(ctx, f.priceKey, data, f.parent.cfg.TTL()); err != nil {
		return apperrors.NewStorageUnavailableError("save price table", err)
	}
	return nil
}

// Clear drops the draft and its price table and releases the session.
func (f *FormStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.parent.backend.Del(ctx, f.formKey, f.priceKey); err != nil {
		return apperrors.NewStorageUnavailableError("clear form", err)
	}
	f.parent.release(f)
	return nil
}

// release drops f only if it is still the live handle for its session.
func (s *Store) release(f *FormStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[f.session] == f {
		delete(s.sessions, f.session)
	}
}

// storedForm reads a draft while leaving subsidiaries raw, since older
// drafts kept them as an object keyed by index.
type storedForm struct {
	*form.FormState
	Subsidiaries json.RawMessage `json:"subsidiaries"`
}

// decodeForm parses a stored draft over the defaults and normalizes the
// subsidiary list.
func decodeForm(raw []byte, now time.Time) (*form.FormState, error) {
	stored := storedForm{FormState: form.Defaults(now)}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	subs, err := decodeSubsidiaries(stored.Subsidiaries)
	if err != nil {
		return nil, err
	}
	state := stored.FormState
	state.Subsidiaries = subs
	return state, nil
}

func decodeSubsidiaries(raw json.RawMessage) ([]form.CompanyEntity, error) {
	raw = bytes.TrimSpace(raw)
	var subs []form.CompanyEntity

	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		subs = []form.CompanyEntity{}
	case raw[0] == '[':
		// older clients serialized sparse arrays, leaving null holes
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		subs = make([]form.CompanyEntity, 0, len(elems))
		for _, elem := range elems {
			c := form.NewCompanyEntity()
			if !bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
				c = form.CompanyEntity{}
				if err := json.Unmarshal(elem, &c); err != nil {
					return nil, err
				}
			}
			subs = append(subs, c)
		}
	case raw[0] == '{':
		var keyed map[string]form.CompanyEntity
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, err
		}
		subs = fromIndexMap(keyed)
	default:
		subs = []form.CompanyEntity{}
	}

	if len(subs) > form.MaxSubsidiaries {
		subs = subs[:form.MaxSubsidiaries]
	}
	for i := range subs {
		if subs[i].ID == "" {
			subs[i].ID = uuid.NewString()
		}
	}
	return subs, nil
}

// fromIndexMap places each entry at its numeric key. Gaps become zero
// entities; keys that are not indexes are dropped.
func fromIndexMap(keyed map[string]form.CompanyEntity) []form.CompanyEntity {
	indexes := make([]int, 0, len(keyed))
	byIndex := make(map[int]form.CompanyEntity, len(keyed))
	for k, v := range keyed {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= form.MaxSubsidiaries {
			continue
		}
		indexes = append(indexes, i)
		byIndex[i] = v
	}
	sort.Ints(indexes)

	subs := []form.CompanyEntity{}
	if len(indexes) == 0 {
		return subs
	}
	for i := 0; i <= indexes[len(indexes)-1]; i++ {
		if c, ok := byIndex[i]; ok {
			subs = append(subs, c)
		} else {
			subs = append(subs, form.NewCompanyEntity())
		}
	}
	return subs
}
