package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/observability"
)

var (
	ErrLookupDisabled = errors.New("voucher lookup endpoint is not configured")
	ErrEmptyPriceData = errors.New("voucher response carried no price data")
)

// Lookup resolves a voucher code (possibly empty) to a price table.
type Lookup interface {
	Lookup(ctx context.Context, voucher string) (*PriceTable, error)
}

type voucherResponse struct {
	Data *PriceTable `json:"data"`
}

// VoucherClient queries GET <endpoint>?voucher=<code>.
type VoucherClient struct {
	endpoint string
	client   *commonhttp.Client
	obs      *observability.Observability
}

func NewVoucherClient(endpoint string, client *commonhttp.Client, obs *observability.Observability) *VoucherClient {
	return &VoucherClient{endpoint: endpoint, client: client, obs: obs}
}

func (c *VoucherClient) Lookup(ctx context.Context, voucher string) (*PriceTable, error) {
	if c.endpoint == "" {
		return nil, ErrLookupDisabled
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("voucher", voucher)
	u.RawQuery = q.Encode()

	start := time.Now()
	var resp voucherResponse
	err = c.client.GetJSON(ctx, u.String(), &resp)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.obs.RecordCall(ctx, "voucher_lookup", status, time.Since(start))

	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, ErrEmptyPriceData
	}
	return resp.Data, nil
}
