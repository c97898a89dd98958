package form

import (
	"strconv"

	"github.com/amcolab/sell-bot/internal/taxonomy"
)

// TripleOptions are the select lists for one category triple. A nil level
// is hidden: its parent is empty or has no children.
type TripleOptions struct {
	Category1 []taxonomy.Option `json:"category1"`
	Category2 []taxonomy.Option `json:"category2,omitempty"`
	Category3 []taxonomy.Option `json:"category3,omitempty"`
}

// Options lists every select the form currently shows, keyed by field path.
type Options struct {
	Static     map[string][]taxonomy.Option `json:"static"`
	Industries map[string]TripleOptions     `json:"industries"`
}

var staticOptions = map[string][]taxonomy.Option{
	"applicationType": {
		{Value: "", Label: taxonomy.PlaceholderLabel},
		{Value: ApplicationTypeMainOnly, Label: ApplicationTypeMainOnly},
		{Value: ApplicationTypeWithSubsidiaries, Label: ApplicationTypeWithSubsidiaries},
	},
	"numberOfSubsidiaries": subsidiaryCountOptions(),
	"specialCase": {
		{Value: SpecialCaseOver50, Label: "本業の売上高が50超"},
		{Value: SpecialCaseUnder50, Label: "本業の売上高が50以下"},
	},
	"reportReceiving": {
		{Value: DeliveryViaReferrer, Label: DeliveryViaReferrer},
		{Value: DeliveryByPost, Label: DeliveryByPost},
	},
	"maritalStatus": {
		{Value: MaritalStatusMarried, Label: MaritalStatusMarried},
		{Value: MaritalStatusSingle, Label: MaritalStatusSingle},
	},
	"includeSpouseAssets": {
		{Value: IncludeSpouseAssetsYes, Label: IncludeSpouseAssetsYes},
		{Value: IncludeSpouseAssetsNo, Label: IncludeSpouseAssetsNo},
	},
}

func subsidiaryCountOptions() []taxonomy.Option {
	opts := []taxonomy.Option{{Value: "", Label: taxonomy.PlaceholderLabel}}
	for i := 0; i <= MaxSubsidiaries; i++ {
		v := strconv.Itoa(i)
		opts = append(opts, taxonomy.Option{Value: v, Label: v})
	}
	return opts
}

// TripleOptions derives the dependent lists for t from the taxonomy.
func (e *Engine) TripleOptions(t CategoryTriple) TripleOptions {
	opts := TripleOptions{Category1: taxonomy.ToSelectOptions(e.tax.TopLevel())}
	if children := e.tax.ChildrenOfKey(t.Category1); len(children) > 0 {
		opts.Category2 = taxonomy.ToSelectOptions(children)
	}
	if children := e.tax.ChildrenOfKey(t.Category2); len(children) > 0 {
		opts.Category3 = taxonomy.ToSelectOptions(children)
	}
	return opts
}

// Options derives every select list for the current state. Industry keys are
// the triple's path prefix, e.g. "subsidiaries.0.industry.secondSource".
func (e *Engine) Options(s *FormState) Options {
	out := Options{
		Static:     staticOptions,
		Industries: make(map[string]TripleOptions),
	}
	for _, ref := range s.Companies() {
		for _, slot := range Slots {
			key := ref.Entity.String() + ".industry"
			if k := slot.key(); k != "" {
				key += "." + k
			}
			out.Industries[key] = e.TripleOptions(*ref.Company.Industry.Slot(slot))
		}
	}
	return out
}
