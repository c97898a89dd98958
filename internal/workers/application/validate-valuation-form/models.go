package validatevaluationform

import (
	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
)

// Input is the submitted payload as the workflow received it. PriceTable is
// optional; without it the voucher is looked up again.
type Input struct {
	FormData   *form.FormState     `json:"formData"`
	PriceTable *pricing.PriceTable `json:"priceTable,omitempty"`
}

type Output struct {
	IsValid          bool                         `json:"isValid"`
	Price            int64                        `json:"price"`
	SubmittedPrice   int64                        `json:"submittedPrice"`
	PriceMatches     bool                         `json:"priceMatches"`
	AppliedRules     []form.Rule                  `json:"appliedRules"`
	FormData         *form.FormState              `json:"formData"`
	ValidationErrors []validation.ValidationError `json:"validationErrors"`
}
