package submission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/metrics"
	"github.com/amcolab/sell-bot/internal/common/observability"
	"github.com/amcolab/sell-bot/internal/form"
)

// The backend reads the body as plain text and parses it itself.
const contentType = "text/plain; charset=utf-8"

// CodeOK is the application-level success code in the backend response.
const CodeOK = 200

var ErrSubmissionDisabled = errors.New("submission endpoint is not configured")

type BankTransferDetails struct {
	AccountNumber     string `json:"accountNumber"`
	BankName          string `json:"bankName"`
	BranchName        string `json:"branchName"`
	BankCode          string `json:"bankCode"`
	BranchCode        string `json:"branchCode"`
	AccountHolderName string `json:"accountHolderName"`
}

// Response is the backend's answer to a submission.
type Response struct {
	Code                int                  `json:"code"`
	Message             string               `json:"message"`
	PaymentLink         string               `json:"paymentLink,omitempty"`
	BankTransferDetails *BankTransferDetails `json:"bankTransferDetails,omitempty"`
}

type Outcome string

const (
	// OutcomeRedirect sends the user on to the payment link.
	OutcomeRedirect     Outcome = "redirect"
	OutcomeBankTransfer Outcome = "bank_transfer"
	// OutcomeAccepted carries neither a link nor transfer details.
	OutcomeAccepted Outcome = "accepted"
)

// Result is an accepted submission.
type Result struct {
	Outcome      Outcome              `json:"outcome"`
	Message      string               `json:"message"`
	PaymentLink  string               `json:"paymentLink,omitempty"`
	BankTransfer *BankTransferDetails `json:"bankTransferDetails,omitempty"`
	RequestID    string               `json:"requestId"`
}

// Submitter posts a finished form.
type Submitter interface {
	Submit(ctx context.Context, state *form.FormState, userID string) (*Result, error)
}

// Client posts the form to the configured backend endpoint.
type Client struct {
	endpoint string
	client   *commonhttp.Client
	obs      *observability.Observability
	log      logger.Logger
}

func NewClient(endpoint string, client *commonhttp.Client, obs *observability.Observability, log logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client:   client,
		obs:      obs,
		log:      log.Named("submission"),
	}
}

// Submit posts state with userID attached. A transport or decoding failure
// is SUBMISSION_FAILED; an answer other than CodeOK is SUBMISSION_REJECTED
// carrying the backend message.
func (c *Client) Submit(ctx context.Context, state *form.FormState, userID string) (*Result, error) {
	if c.endpoint == "" {
		metrics.Submissions.WithLabelValues("disabled").Inc()
		return nil, apperrors.NewSubmissionFailedError(ErrSubmissionDisabled)
	}

	payload := state.Clone()
	payload.UserID = userID
	requestID := uuid.NewString()
	log := c.log.WithFields(map[string]interface{}{
		"requestId": requestID,
		"userId":    userID,
	})

	start := time.Now()
	var resp Response
	err := c.client.PostJSONWithHeaders(ctx, c.endpoint, contentType,
		map[string]string{"X-Request-ID": requestID}, payload, &resp)
	if err != nil {
		c.obs.RecordCall(ctx, "submit", "error", time.Since(start))
		metrics.Submissions.WithLabelValues("failed").Inc()
		log.Error("API Error", map[string]interface{}{"error": err})
		return nil, apperrors.NewSubmissionFailedError(err)
	}
	c.obs.RecordCall(ctx, "submit", "ok", time.Since(start))

	if resp.Code != CodeOK {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		log.Warn("Submission rejected", map[string]interface{}{
			"code":    resp.Code,
			"message": resp.Message,
		})
		return nil, apperrors.NewSubmissionRejectedError(resp.Code, resp.Message).
			WithMetadata("requestId", requestID)
	}

	res := &Result{Message: resp.Message, RequestID: requestID}
	switch {
	case resp.PaymentLink != "":
		res.Outcome = OutcomeRedirect
		res.PaymentLink = resp.PaymentLink
	case resp.BankTransferDetails != nil:
		res.Outcome = OutcomeBankTransfer
		res.BankTransfer = resp.BankTransferDetails
	default:
		res.Outcome = OutcomeAccepted
	}
	metrics.Submissions.WithLabelValues(string(res.Outcome)).Inc()
	log.Info("Submission accepted", map[string]interface{}{"outcome": res.Outcome})
	return res, nil
}
