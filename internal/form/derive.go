package form

import (
	"fmt"

	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

// Rule names a derivation, reported when it changed the state.
type Rule string

const (
	RuleCategoryCascade Rule = "category_cascade"
	RuleRevenueGating   Rule = "revenue_gating"
	RuleSubsidiarySync  Rule = "subsidiary_sync"
	RulePricing         Rule = "pricing"
)

// Engine applies edits and re-derives dependent fields.
type Engine struct {
	tax *taxonomy.Taxonomy
}

func NewEngine(tax *taxonomy.Taxonomy) *Engine {
	return &Engine{tax: tax}
}

func (e *Engine) Taxonomy() *taxonomy.Taxonomy { return e.tax }

// Edit applies a keystroke-level change at p and returns the derived state.
// state is left untouched.
func (e *Engine) Edit(state *FormState, p Path, raw string, table *pricing.PriceTable) (*FormState, []Rule, error) {
	if err := checkActive(state, p); err != nil {
		return nil, nil, err
	}
	next := state.Clone()
	if err := next.Set(p, NormalizeInput(p.Kind(), raw)); err != nil {
		return nil, nil, err
	}
	return next, e.Derive(state, next, table), nil
}

// checkActive rejects edits to subsidiaries beyond the declared count.
func checkActive(state *FormState, p Path) error {
	if p.Field.CompanyScoped() && p.Entity.IsSubsidiary() && p.Entity.Index() >= state.SubsidiaryCount() {
		return fmt.Errorf("%w: %s is not an active subsidiary", ErrInvalidPath, p)
	}
	return nil
}

// Blur applies the leave-field normalization at p.
func (e *Engine) Blur(state *FormState, p Path, table *pricing.PriceTable) (*FormState, []Rule, error) {
	cur, err := state.Get(p)
	if err != nil {
		return nil, nil, err
	}
	next := state.Clone()
	if err := next.Set(p, NormalizeBlur(p.Kind(), cur)); err != nil {
		return nil, nil, err
	}
	return next, e.Derive(state, next, table), nil
}

// Derive brings next in line with every rule, in order: category cascade,
// revenue gating, subsidiary sync, pricing. prev is the state before the
// mutation (nil on first load) and is only read. Every rule is idempotent.
func (e *Engine) Derive(prev, next *FormState, table *pricing.PriceTable) []Rule {
	var applied []Rule
	if e.cascade(prev, next) {
		applied = append(applied, RuleCategoryCascade)
	}
	if gateRevenue(next) {
		applied = append(applied, RuleRevenueGating)
	}
	if syncSubsidiaries(prev, next) {
		applied = append(applied, RuleSubsidiarySync)
	}
	if Reprice(next, table) {
		applied = append(applied, RulePricing)
	}
	return applied
}

// cascade resets lower categories whose parent changed or no longer admits
// them, for every slot of every company.
func (e *Engine) cascade(prev, next *FormState) bool {
	changed := false
	for _, ref := range next.Companies() {
		var before *CompanyEntity
		if prev != nil {
			before = prev.company(ref.Entity)
		}
		for _, slot := range Slots {
			var old *CategoryTriple
			if before != nil {
				old = before.Industry.Slot(slot)
			}
			if e.CascadeTriple(old, ref.Company.Industry.Slot(slot)) {
				changed = true
			}
		}
	}
	return changed
}

// CascadeTriple enforces the category dependency on one triple: category2
// is cleared when category1 changed or is not its parent, and likewise for
// category3. old may be nil.
func (e *Engine) CascadeTriple(old, t *CategoryTriple) bool {
	before := *t
	if old != nil && old.Category1 != t.Category1 {
		t.Category2, t.Category3 = "", ""
	}
	if old != nil && old.Category2 != t.Category2 {
		t.Category3 = ""
	}
	if !e.isChild(t.Category1, t.Category2) {
		t.Category2, t.Category3 = "", ""
	}
	if !e.isChild(t.Category2, t.Category3) {
		t.Category3 = ""
	}
	return before != *t
}

// isChild reports whether child may sit under parent. An empty child always
// may; a non-empty one needs a parent that lists it.
func (e *Engine) isChild(parent, child string) bool {
	if child == "" {
		return true
	}
	for _, n := range e.tax.ChildrenOfKey(parent) {
		if n.Key() == child {
			return true
		}
	}
	return false
}

// gateRevenue clears the third revenue source of every company whose top two
// sources already reach the threshold.
func gateRevenue(s *FormState) bool {
	changed := false
	for _, ref := range s.Companies() {
		ind := &ref.Company.Industry
		if ind.TopTwoRevenue() < RevenueThreshold {
			continue
		}
		if ind.RevenuePercentage3 != "" || ind.ThirdSource != (CategoryTriple{}) {
			ind.RevenuePercentage3 = ""
			ind.ThirdSource = CategoryTriple{}
			changed = true
		}
	}
	return changed
}

// syncSubsidiaries resizes the subsidiary list when applicationType or
// numberOfSubsidiaries differ from prev. Tracking the previous trigger
// values keeps the rule from refiring on its own output.
func syncSubsidiaries(prev, next *FormState) bool {
	if prev != nil &&
		prev.ApplicationType == next.ApplicationType &&
		prev.NumberOfSubsidiaries == next.NumberOfSubsidiaries {
		return false
	}

	changed := false
	if next.ApplicationType == ApplicationTypeMainOnly && next.NumberOfSubsidiaries != "0" {
		next.NumberOfSubsidiaries = "0"
		changed = true
	}
	if ResizeSubsidiaries(next, next.SubsidiaryCount()) {
		changed = true
	}
	return changed
}

// ResizeSubsidiaries grows (appending fresh entities) or truncates the list
// to n, leaving the prefix untouched.
func ResizeSubsidiaries(s *FormState, n int) bool {
	if n < 0 {
		n = 0
	}
	cur := len(s.Subsidiaries)
	switch {
	case cur == n:
		if s.Subsidiaries == nil {
			s.Subsidiaries = []CompanyEntity{}
		}
		return false
	case cur > n:
		s.Subsidiaries = s.Subsidiaries[:n:n]
	default:
		for len(s.Subsidiaries) < n {
			s.Subsidiaries = append(s.Subsidiaries, NewSubsidiary())
		}
	}
	return true
}

// Reprice writes the total for the current application into price.
func Reprice(s *FormState, table *pricing.PriceTable) bool {
	total := table.Total(s.ApplicationType != "", s.SubsidiaryCount())
	if s.Price == total {
		return false
	}
	s.Price = total
	return true
}
