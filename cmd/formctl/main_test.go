package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amcolab/sell-bot/internal/form"
)

const validDraft = `{
  "registrationDate": "2026-10-18",
  "legalName": "株式会社サンプル",
  "katakanaName": "カブシキガイシャ　サンプル",
  "contactLastName": "山田",
  "contactFirstName": "太郎",
  "contactLastNameKana": "ヤマダ",
  "contactFirstNameKana": "タロウ",
  "email": "taro@example.com",
  "phone": "0312345678",
  "postalCode": "100-0001",
  "reportReceiving": "郵送",
  "receiverAddress": "東京都千代田区千代田1-1",
  "applicationType": "主たる法人のみ",
  "numberOfSubsidiaries": "0",
  "mainCompany": {
    "industry": {"category1": "21", "specialCase": "over50"},
    "financial": {"profit": "1,000,000", "dividends": "0"}
  },
  "maritalStatus": "なし",
  "numberOfChildren": "1",
  "includeSpouseAssets": "いいえ",
  "currentSalary": "6,000,000",
  "numberOfYears": "12",
  "price": 100000
}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(strings.NewReader(stdin))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDraft(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		out, err := run(t, "", "validate", writeDraft(t, validDraft))
		require.NoError(t, err)
		assert.Equal(t, "OK\n", out)
	})

	t.Run("stdin", func(t *testing.T) {
		out, err := run(t, validDraft, "validate", "-")
		require.NoError(t, err)
		assert.Equal(t, "OK\n", out)
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		out, err := run(t, `{"legalName": ""}`, "validate", "-")
		require.Error(t, err)
		assert.ErrorIs(t, err, errInvalidForm)
		assert.Contains(t, out, "legalName:")
		assert.Contains(t, out, "applicationType:")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := run(t, `{}`, "validate", "--json", "-")
		require.Error(t, err)

		var res struct {
			Valid  bool `json:"valid"`
			Errors []struct {
				Field string `json:"field"`
			} `json:"errors"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := run(t, `{"legalName":`, "validate", "-")
		require.Error(t, err)
		assert.NotErrorIs(t, err, errInvalidForm)
	})
}

func TestPreview(t *testing.T) {
	out, err := run(t, validDraft, "preview", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "■ 基本情報")
	assert.Contains(t, out, "株式会社サンプル")
	assert.Contains(t, out, "■ 本社情報")
}

func TestEdit(t *testing.T) {
	out, err := run(t, "", "edit",
		"--main-price", "100000", "--child-price", "30000",
		"applicationType=子会社含む",
		"numberOfSubsidiaries=２",
	)
	require.NoError(t, err)

	var res struct {
		Form  form.FormState `json:"form"`
		Rules []string       `json:"rules"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, "2", res.Form.NumberOfSubsidiaries)
	assert.Len(t, res.Form.Subsidiaries, 2)
	assert.Equal(t, int64(160000), res.Form.Price)
	assert.Contains(t, res.Rules, "numberOfSubsidiaries: subsidiary_sync")
}

func TestEdit_FromFile(t *testing.T) {
	out, err := run(t, "", "edit", "--from", writeDraft(t, validDraft), "legalName=株式会社テスト")
	require.NoError(t, err)
	assert.Contains(t, out, "株式会社テスト")
	assert.Contains(t, out, `"contactLastName": "山田"`)
}

func TestEdit_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing equals", []string{"edit", "legalName"}},
		{"unknown path", []string{"edit", "nope=1"}},
		{"inactive subsidiary", []string{"edit", "subsidiaries.0.financial.profit=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("voucher") == "BAD" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{"mainCompanyPrice":"50000","childCompanyPrice":20000}}`))
	}))
	defer srv.Close()

	t.Run("prints total", func(t *testing.T) {
		out, err := run(t, "", "quote", "--endpoint", srv.URL, "--voucher", "SPRING", "--subsidiaries", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "主たる法人: ¥50,000")
		assert.Contains(t, out, "合計: ¥110,000")
	})

	t.Run("lookup failure", func(t *testing.T) {
		_, err := run(t, "", "quote", "--endpoint", srv.URL, "--voucher", "BAD")
		assert.Error(t, err)
	})

	t.Run("no endpoint", func(t *testing.T) {
		_, err := run(t, "", "quote", "--endpoint", "")
		assert.Error(t, err)
	})

	t.Run("count out of range", func(t *testing.T) {
		_, err := run(t, "", "quote", "--endpoint", srv.URL, "--subsidiaries", "5")
		assert.Error(t, err)
	})
}

func TestTaxonomy(t *testing.T) {
	out, err := run(t, "", "taxonomy")
	require.NoError(t, err)
	assert.Contains(t, out, "1\t建設業\n")

	out, err = run(t, "", "taxonomy", "1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1\t建設業\n"))
	assert.Contains(t, out, "  2\t総合工事業 +\n")

	out, err = run(t, "", "taxonomy", "建設業")
	require.NoError(t, err)
	assert.Contains(t, out, "総合工事業")

	_, err = run(t, "", "taxonomy", "99999")
	assert.Error(t, err)
}
