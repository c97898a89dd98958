package submission

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/observability"
)

func TestClient_Submit(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		want        *Result
		wantCode    apperrors.ErrorCode
		wantMessage string
	}{
		{
			name:   "payment link redirects",
			status: http.StatusOK,
			body:   `{"code": 200, "message": "受付しました", "paymentLink": "https://pay.example.com/abc"}`,
			want:   &Result{Outcome: OutcomeRedirect, Message: "受付しました", PaymentLink: "https://pay.example.com/abc"},
		},
		{
			name:   "bank transfer details",
			status: http.StatusOK,
			body: `{"code": 200, "message": "受付しました", "bankTransferDetails": {
				"accountNumber": "1234567", "bankName": "サンプル銀行", "branchName": "本店",
				"bankCode": "0001", "branchCode": "001", "accountHolderName": "カ）サンプル"}}`,
			want: &Result{Outcome: OutcomeBankTransfer, Message: "受付しました", BankTransfer: &BankTransferDetails{
				AccountNumber: "1234567", BankName: "サンプル銀行", BranchName: "本店",
				BankCode: "0001", BranchCode: "001", AccountHolderName: "カ）サンプル",
			}},
		},
		{
			name:   "accepted without next step",
			status: http.StatusOK,
			body:   `{"code": 200, "message": "ok"}`,
			want:   &Result{Outcome: OutcomeAccepted, Message: "ok"},
		},
		{
			name:        "application-level rejection",
			status:      http.StatusOK,
			body:        `{"code": 400, "message": "クーポンが無効です"}`,
			wantCode:    apperrors.ErrCodeSubmissionRejected,
			wantMessage: "クーポンが無効です",
		},
		{
			name:        "http failure",
			status:      http.StatusBadGateway,
			body:        `bad gateway`,
			wantCode:    apperrors.ErrCodeSubmissionFailed,
			wantMessage: "データの送信に失敗しました",
		},
		{
			name:        "undecodable body",
			status:      http.StatusOK,
			body:        `<html>`,
			wantCode:    apperrors.ErrCodeSubmissionFailed,
			wantMessage: "データの送信に失敗しました",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "text/plain; charset=utf-8", r.Header.Get("Content-Type"))
				assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

				raw, err := io.ReadAll(r.Body)
				assert.NoError(t, err)
				var payload map[string]interface{}
				assert.NoError(t, json.Unmarshal(raw, &payload))
				assert.Equal(t, "U1234", payload["userId"])
				assert.Equal(t, "株式会社サンプル", payload["legalName"])
				assert.EqualValues(t, 130000, payload["price"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, commonhttp.NewClient(5*time.Second), observability.NewNoop(), logger.NewTestLogger(t))
			state := sampleForm()
			got, err := c.Submit(context.Background(), state, "U1234")

			// the caller's state is not modified
			assert.Empty(t, state.UserID)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Nil(t, got)
				stdErr := apperrors.AsStandard(err)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				assert.Equal(t, tt.wantMessage, stdErr.Message)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.RequestID)
			got.RequestID = ""
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SubmitDisabled(t *testing.T) {
	c := NewClient("", commonhttp.NewClient(time.Second), observability.NewNoop(), logger.NewNoOpLogger())
	_, err := c.Submit(context.Background(), sampleForm(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionDisabled)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSubmissionFailed))
}

func TestClient_SubmitUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, commonhttp.NewClient(time.Second), observability.NewNoop(), logger.NewNoOpLogger())
	_, err := c.Submit(context.Background(), sampleForm(), "U1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSubmissionFailed))
}
