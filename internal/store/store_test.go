package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amcolab/sell-bot/internal/common/config"
	"github.com/amcolab/sell-bot/internal/common/database"
	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

var fixedNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Backend:       "redis",
		FormKey:       "formData",
		PriceTableKey: "priceTable",
		DraftTTL:      24,
	}
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := New(backend, form.NewEngine(taxonomy.MustDefault()), testStorageConfig(), logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	return s
}

func newMiniredisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newTestStore(t, database.NewRedisFromClient(rdb)), mr
}

func TestFormStore_LoadDefaultsWhenAbsent(t *testing.T) {
	s, _ := newMiniredisStore(t)

	state, err := s.Session("u1").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, form.Defaults(fixedNow), state)
	assert.Equal(t, "2026-10-18", state.RegistrationDate)
}

func TestFormStore_SaveLoadRoundTrip(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	state := form.Defaults(fixedNow)
	state.LegalName = "株式会社サンプル"
	state.ApplicationType = form.ApplicationTypeWithSubsidiaries
	state.NumberOfSubsidiaries = "1"
	state.Subsidiaries = []form.CompanyEntity{form.NewSubsidiary()}
	state.Price = 130000
	require.NoError(t, fs.SavePriceTable(ctx, &pricing.PriceTable{MainCompanyPrice: 100000, ChildCompanyPrice: 30000}))
	require.NoError(t, fs.Save(ctx, state))

	assert.True(t, mr.Exists("formData:u1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("formData:u1"))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	// sessions do not share drafts
	other, err := s.Session("u2").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, other.LegalName)
}

func TestFormStore_LoadSelfHeals(t *testing.T) {
	tests := []struct {
		name  string
		blob  string
		check func(t *testing.T, s *form.FormState)
	}{
		{
			name: "unparsable blob",
			blob: `{"legalName": `,
			check: func(t *testing.T, s *form.FormState) {
				assert.Equal(t, form.Defaults(fixedNow), s)
			},
		},
		{
			name: "wrong top-level shape",
			blob: `["not", "a", "form"]`,
			check: func(t *testing.T, s *form.FormState) {
				assert.Equal(t, form.Defaults(fixedNow), s)
			},
		},
		{
			name: "null subsidiaries",
			blob: `{"legalName":"株式会社A","subsidiaries":null}`,
			check: func(t *testing.T, s *form.FormState) {
				assert.Equal(t, "株式会社A", s.LegalName)
				assert.NotNil(t, s.Subsidiaries)
				assert.Empty(t, s.Subsidiaries)
			},
		},
		{
			name: "missing subsidiaries and financials",
			blob: `{"legalName":"株式会社B"}`,
			check: func(t *testing.T, s *form.FormState) {
				assert.NotNil(t, s.Subsidiaries)
				assert.Empty(t, s.Subsidiaries)
				assert.Equal(t, "0", s.MainCompany.Financial.Profit)
				assert.Equal(t, "2026-10-18", s.RegistrationDate)
			},
		},
		{
			name: "subsidiaries keyed by index",
			blob: `{"applicationType":"子会社含む","numberOfSubsidiaries":"3","subsidiaries":{
				"2":{"financial":{"profit":"300","dividends":"0"}},
				"0":{"financial":{"profit":"100","dividends":"0"}},
				"x":{"financial":{"profit":"999","dividends":"0"}}}}`,
			check: func(t *testing.T, s *form.FormState) {
				require.Len(t, s.Subsidiaries, 3)
				assert.Equal(t, "100", s.Subsidiaries[0].Financial.Profit)
				assert.Equal(t, "0", s.Subsidiaries[1].Financial.Profit)
				assert.Equal(t, "300", s.Subsidiaries[2].Financial.Profit)
				for _, sub := range s.Subsidiaries {
					assert.NotEmpty(t, sub.ID)
				}
			},
		},
		{
			name: "legacy entries without ids keep existing ones",
			blob: `{"applicationType":"子会社含む","numberOfSubsidiaries":"2",
				"subsidiaries":[{"id":"keep-me"},{"industry":{"category1":"21"}}]}`,
			check: func(t *testing.T, s *form.FormState) {
				require.Len(t, s.Subsidiaries, 2)
				assert.Equal(t, "keep-me", s.Subsidiaries[0].ID)
				assert.NotEmpty(t, s.Subsidiaries[1].ID)
				assert.Equal(t, "21", s.Subsidiaries[1].Industry.Category1)
			},
		},
		{
			name: "too many subsidiaries",
			blob: `{"applicationType":"子会社含む","numberOfSubsidiaries":"4",
				"subsidiaries":[{},{},{},{},{},{}]}`,
			check: func(t *testing.T, s *form.FormState) {
				assert.Len(t, s.Subsidiaries, form.MaxSubsidiaries)
			},
		},
		{
			name: "null holes in a sparse array",
			blob: `{"applicationType":"子会社含む","numberOfSubsidiaries":"3",
				"subsidiaries":[{"financial":{"profit":"100","dividends":"0"}},null,{"financial":{"profit":"300","dividends":"0"}}]}`,
			check: func(t *testing.T, s *form.FormState) {
				require.Len(t, s.Subsidiaries, 3)
				assert.Equal(t, "100", s.Subsidiaries[0].Financial.Profit)
				assert.Equal(t, "0", s.Subsidiaries[1].Financial.Profit)
				assert.Equal(t, "0", s.Subsidiaries[1].Financial.Dividends)
				assert.NotEmpty(t, s.Subsidiaries[1].ID)
				assert.Equal(t, "300", s.Subsidiaries[2].Financial.Profit)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newMiniredisStore(t)
			require.NoError(t, mr.Set("formData:u1", tt.blob))

			state, err := s.Session("u1").Load(context.Background())
			require.NoError(t, err)
			tt.check(t, state)
		})
	}
}

func TestFormStore_LoadResyncsSubsidiaries(t *testing.T) {
	tests := []struct {
		name      string
		blob      string
		wantCount string
		wantLen   int
	}{
		{
			name: "keyed map longer than the count",
			blob: `{"applicationType":"子会社含む","numberOfSubsidiaries":"1","subsidiaries":{
				"0":{"id":"first","financial":{"profit":"100","dividends":"0"}},
				"2":{"financial":{"profit":"300","dividends":"0"}}}}`,
			wantCount: "1",
			wantLen:   1,
		},
		{
			name:      "main company only with stored subsidiaries",
			blob:      `{"applicationType":"主たる法人のみ","numberOfSubsidiaries":"2","subsidiaries":[{"id":"a"},{"id":"b"}]}`,
			wantCount: "0",
			wantLen:   0,
		},
		{
			name:      "array shorter than the count",
			blob:      `{"applicationType":"子会社含む","numberOfSubsidiaries":"3","subsidiaries":[{"id":"a"}]}`,
			wantCount: "3",
			wantLen:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newMiniredisStore(t)
			ctx := context.Background()
			fs := s.Session("u1")
			require.NoError(t, mr.Set("formData:u1", tt.blob))

			state, err := fs.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, state.NumberOfSubsidiaries)
			assert.Len(t, state.Subsidiaries, tt.wantLen)

			// an unrelated edit saves the resynced list
			state, _, err = fs.Edit(ctx, form.At(form.FieldLegalName), "株式会社A")
			require.NoError(t, err)
			assert.Len(t, state.Subsidiaries, tt.wantLen)

			raw, err := mr.Get("formData:u1")
			require.NoError(t, err)
			var stored form.FormState
			require.NoError(t, json.Unmarshal([]byte(raw), &stored))
			assert.Equal(t, tt.wantCount, stored.NumberOfSubsidiaries)
			assert.Len(t, stored.Subsidiaries, tt.wantLen)
		})
	}
}

func TestFormStore_SavePartial(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	state, err := fs.SavePartial(ctx, form.Subsidiary(1).Of(form.FieldProfit), "500")
	require.NoError(t, err)
	require.Len(t, state.Subsidiaries, 2)
	assert.Equal(t, "500", state.Subsidiaries[1].Financial.Profit)

	raw, err := mr.Get("formData:u1")
	require.NoError(t, err)
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	subs := stored["subsidiaries"].([]interface{})
	require.Len(t, subs, 2)
	assert.Equal(t, "500", subs[1].(map[string]interface{})["financial"].(map[string]interface{})["profit"])
}

func TestFormStore_EditRunsDerivations(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	require.NoError(t, fs.SavePriceTable(ctx, &pricing.PriceTable{MainCompanyPrice: 100000, ChildCompanyPrice: 30000}))

	_, rules, err := fs.Edit(ctx, form.At(form.FieldApplicationType), form.ApplicationTypeWithSubsidiaries)
	require.NoError(t, err)
	assert.Contains(t, rules, form.RulePricing)

	state, rules, err := fs.Edit(ctx, form.At(form.FieldNumberOfSubsidiaries), "2")
	require.NoError(t, err)
	assert.Contains(t, rules, form.RuleSubsidiarySync)
	assert.Len(t, state.Subsidiaries, 2)
	assert.Equal(t, int64(160000), state.Price)

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	_, _, err = fs.Edit(ctx, form.Subsidiary(3).Of(form.FieldProfit), "1")
	assert.ErrorIs(t, err, form.ErrInvalidPath)
}

func TestFormStore_Blur(t *testing.T) {
	s, _ := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	_, _, err := fs.Edit(ctx, form.At(form.FieldCurrentSalary), "")
	require.NoError(t, err)

	state, _, err := fs.Blur(ctx, form.At(form.FieldCurrentSalary))
	require.NoError(t, err)
	assert.Equal(t, "0", state.CurrentSalary)
}

func TestFormStore_PriceTable(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	table, err := fs.LoadPriceTable(ctx)
	require.NoError(t, err)
	assert.Nil(t, table)

	_, _, err = fs.Edit(ctx, form.At(form.FieldApplicationType), form.ApplicationTypeMainOnly)
	require.NoError(t, err)

	state, err := fs.ApplyPriceTable(ctx, &pricing.PriceTable{MainCompanyPrice: 100000, ChildCompanyPrice: 30000})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), state.Price)

	table, err = fs.LoadPriceTable(ctx)
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, pricing.Amount(100000), table.MainCompanyPrice)

	// the backend sometimes stores amounts as strings
	require.NoError(t, mr.Set("priceTable:u1", `{"mainCompanyPrice":"120,000","childCompanyPrice":"0"}`))
	table, err = fs.LoadPriceTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, pricing.Amount(120000), table.MainCompanyPrice)

	require.NoError(t, mr.Set("priceTable:u1", `{garbage`))
	table, err = fs.LoadPriceTable(ctx)
	require.NoError(t, err)
	assert.Nil(t, table)

	state, err = fs.ApplyPriceTable(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, state.Price)
	assert.False(t, mr.Exists("priceTable:u1"))
}

func TestFormStore_Clear(t *testing.T) {
	s, mr := newMiniredisStore(t)
	ctx := context.Background()
	fs := s.Session("u1")

	require.NoError(t, fs.Save(ctx, form.Defaults(fixedNow)))
	require.NoError(t, fs.SavePriceTable(ctx, &pricing.PriceTable{MainCompanyPrice: 1}))
	require.NoError(t, fs.Clear(ctx))
	assert.False(t, mr.Exists("formData:u1"))
	assert.False(t, mr.Exists("priceTable:u1"))
	assert.Zero(t, s.Len())
	assert.NotSame(t, fs, s.Session("u1"))
}

func TestStore_SessionsAreReleased(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	ctx := context.Background()
	now := fixedNow
	s.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Session(fmt.Sprintf("s%d", i)).Clear(ctx))
	}
	assert.Zero(t, s.Len())

	s.Session("idle")
	busy := s.Session("busy")
	s.Release("missing")
	assert.Equal(t, 2, s.Len())

	now = now.Add(10 * time.Minute)
	s.Session("fresh")
	assert.Zero(t, s.Sweep(30*time.Minute))

	// idle and busy are past the window; busy is mid-write
	now = now.Add(25 * time.Minute)
	busy.mu.Lock()
	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	busy.mu.Unlock()
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Sweep(0))
	assert.Zero(t, s.Len())

	// the draft survives its handle
	_, _, err := s.Session("fresh").Edit(ctx, form.At(form.FieldLegalName), "株式会社A")
	require.NoError(t, err)
	s.Release("fresh")
	state, err := s.Session("fresh").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "株式会社A", state.LegalName)
}

func TestFormStore_BackendFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	t.Run("load", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		s := newTestStore(t, database.NewRedisFromClient(db))

		mock.ExpectGet("formData:u1").SetErr(boom)
		_, err := s.Session("u1").Load(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorageUnavailable))
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing key is not a failure", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		s := newTestStore(t, database.NewRedisFromClient(db))

		mock.ExpectGet("formData:u1").RedisNil()
		mock.ExpectGet("priceTable:u1").RedisNil()
		state, err := s.Session("u1").Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, form.Defaults(fixedNow), state)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		defer db.Close()
		s := newTestStore(t, database.NewRedisFromClient(db))

		state := form.Defaults(fixedNow)
		data, err := json.Marshal(state)
		require.NoError(t, err)
		mock.ExpectSet("formData:u1", data, 24*time.Hour).SetErr(boom)

		err = s.Session("u1").Save(ctx, state)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorageUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("f"), 0))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// returned slices are copies
	got[0] = 'x'
	got, _ = m.Get(ctx, "k")
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Hour)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, m.Del(ctx, "forever", "missing"))
	_, err = m.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MemoryBackendSessions(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	ctx := context.Background()

	assert.Same(t, s.Session("a"), s.Session("a"))

	_, _, err := s.Session("a").Edit(ctx, form.At(form.FieldLegalName), "株式会社A")
	require.NoError(t, err)

	a, err := s.Session("a").Load(ctx)
	require.NoError(t, err)
	b, err := s.Session("b").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "株式会社A", a.LegalName)
	assert.Empty(t, b.LegalName)
}
