// Package pricing computes the quoted fee from the backend price table and
// resolves discount vouchers against it.
package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a yen amount. The backend sends it either as a JSON number or as
// a numeric string, sometimes with thousands separators.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if raw == "" {
			*a = 0
			return nil
		}
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(b), err)
	}
	*a = Amount(n)
	return nil
}

// PriceTable is the fee schedule returned for a voucher (or for none).
type PriceTable struct {
	MainCompanyPrice  Amount `json:"mainCompanyPrice"`
	ChildCompanyPrice Amount `json:"childCompanyPrice"`
}

// Total returns main + subsidiaries*child, or 0 when no application type has
// been chosen or no table is known yet.
func (t *PriceTable) Total(hasApplicationType bool, subsidiaries int) int64 {
	if t == nil || !hasApplicationType {
		return 0
	}
	if subsidiaries < 0 {
		subsidiaries = 0
	}
	return int64(t.MainCompanyPrice) + int64(subsidiaries)*int64(t.ChildCompanyPrice)
}
