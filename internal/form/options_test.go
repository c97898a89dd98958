package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amcolab/sell-bot/internal/taxonomy"
)

func optionValues(opts []taxonomy.Option) []string {
	values := make([]string, 0, len(opts))
	for _, o := range opts {
		values = append(values, o.Value)
	}
	return values
}

func TestEngine_TripleOptions(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name   string
		triple CategoryTriple
		cat2   []string
		cat3   []string
	}{
		{name: "nothing selected", triple: CategoryTriple{}},
		{name: "leaf top level", triple: CategoryTriple{Category1: "21"}},
		{name: "category1 with children", triple: CategoryTriple{Category1: "1"}, cat2: []string{"", "2", "6", "9"}},
		{
			name:   "full chain",
			triple: CategoryTriple{Category1: "1", Category2: "6"},
			cat2:   []string{"", "2", "6", "9"},
			cat3:   []string{"", "7", "8"},
		},
		{name: "leaf category2", triple: CategoryTriple{Category1: "12", Category2: "20"}, cat2: []string{"", "13", "17", "20"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.TripleOptions(tt.triple)
			assert.Equal(t, []string{"", "1", "12", "21", "22", "27", "32", "39", "46", "51"}, optionValues(got.Category1))
			assert.Equal(t, taxonomy.PlaceholderLabel, got.Category1[0].Label)
			if tt.cat2 == nil {
				assert.Nil(t, got.Category2)
			} else {
				assert.Equal(t, tt.cat2, optionValues(got.Category2))
			}
			if tt.cat3 == nil {
				assert.Nil(t, got.Category3)
			} else {
				assert.Equal(t, tt.cat3, optionValues(got.Category3))
			}
		})
	}
}

func TestEngine_Options(t *testing.T) {
	e := newTestEngine()
	s := Defaults(time.Now())
	s.ApplicationType = ApplicationTypeWithSubsidiaries
	s.NumberOfSubsidiaries = "1"
	s.Subsidiaries = []CompanyEntity{NewSubsidiary()}
	s.Subsidiaries[0].Industry.SecondSource = CategoryTriple{Category1: "22"}

	opts := e.Options(s)

	assert.Len(t, opts.Industries, 6)
	require.Contains(t, opts.Industries, "mainCompany.industry")
	require.Contains(t, opts.Industries, "subsidiaries.0.industry.secondSource")
	require.Contains(t, opts.Industries, "subsidiaries.0.industry.thirdSource")
	assert.Equal(t, []string{"", "23", "26"}, optionValues(opts.Industries["subsidiaries.0.industry.secondSource"].Category2))
	assert.Nil(t, opts.Industries["mainCompany.industry"].Category2)

	assert.Equal(t, []string{"", "0", "1", "2", "3", "4"}, optionValues(opts.Static["numberOfSubsidiaries"]))
	assert.Equal(t, []string{"", ApplicationTypeMainOnly, ApplicationTypeWithSubsidiaries}, optionValues(opts.Static["applicationType"]))
	assert.Equal(t, []string{SpecialCaseOver50, SpecialCaseUnder50}, optionValues(opts.Static["specialCase"]))

	// option keys parse back to paths
	for key := range opts.Industries {
		_, err := ParsePath(key + ".category1")
		assert.NoError(t, err, key)
	}
}
