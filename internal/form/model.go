// Package form holds the canonical valuation application state, its typed
// field paths, the derivation rules that keep dependent fields consistent,
// and the validation rules applied before submission.
package form

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ApplicationTypeMainOnly         = "主たる法人のみ"
	ApplicationTypeWithSubsidiaries = "子会社含む"

	SpecialCaseOver50  = "over50"
	SpecialCaseUnder50 = "under50"

	DeliveryViaReferrer = "紹介者経由"
	DeliveryByPost      = "郵送"

	MaritalStatusMarried = "あり"
	MaritalStatusSingle  = "なし"

	IncludeSpouseAssetsYes = "はい"
	IncludeSpouseAssetsNo  = "いいえ"

	MaxSubsidiaries = 4

	// RevenueThreshold is the combined share of the top two revenue sources
	// at which a third source is no longer asked for.
	RevenueThreshold = 50

	dateLayout = "2006-01-02"
)

// CategoryTriple is one three-level industry pick. Values are taxonomy ids
// encoded as strings, or empty.
type CategoryTriple struct {
	Category1 string `json:"category1"`
	Category2 string `json:"category2"`
	Category3 string `json:"category3"`
}

// IndustrySelection classifies one company. The primary triple is inlined;
// the second and third ranked revenue sources carry their own triples.
type IndustrySelection struct {
	CategoryTriple
	SpecialCase        string         `json:"specialCase"`
	RevenuePercentage1 string         `json:"revenuePercentage1"`
	RevenuePercentage2 string         `json:"revenuePercentage2"`
	RevenuePercentage3 string         `json:"revenuePercentage3"`
	SecondSource       CategoryTriple `json:"secondSource"`
	ThirdSource        CategoryTriple `json:"thirdSource"`
}

// Slot returns the triple for a revenue-source rank.
func (s *IndustrySelection) Slot(slot Slot) *CategoryTriple {
	switch slot {
	case SlotSecond:
		return &s.SecondSource
	case SlotThird:
		return &s.ThirdSource
	default:
		return &s.CategoryTriple
	}
}

// TopTwoRevenue is revenuePercentage1 + revenuePercentage2, empty or
// malformed values counting as zero.
func (s *IndustrySelection) TopTwoRevenue() int {
	return atoiOrZero(s.RevenuePercentage1) + atoiOrZero(s.RevenuePercentage2)
}

// NeedsThirdSource reports whether a third revenue source must be declared.
func (s *IndustrySelection) NeedsThirdSource() bool {
	return s.SpecialCase == SpecialCaseUnder50 && s.TopTwoRevenue() < RevenueThreshold
}

type FinancialInfo struct {
	Profit    string `json:"profit"`
	Dividends string `json:"dividends"`
}

// CompanyEntity is the shape shared by the main company and subsidiaries.
// Only subsidiaries carry an ID.
type CompanyEntity struct {
	ID        string            `json:"id,omitempty"`
	Industry  IndustrySelection `json:"industry"`
	Financial FinancialInfo     `json:"financial"`
}

// NewCompanyEntity returns a zero-valued company with financial fields at "0".
func NewCompanyEntity() CompanyEntity {
	return CompanyEntity{Financial: FinancialInfo{Profit: "0", Dividends: "0"}}
}

// NewSubsidiary is NewCompanyEntity with a fresh stable id.
func NewSubsidiary() CompanyEntity {
	c := NewCompanyEntity()
	c.ID = uuid.NewString()
	return c
}

// FormState is the aggregate root persisted per session and posted on submit.
type FormState struct {
	RegistrationDate     string `json:"registrationDate"`
	LegalName            string `json:"legalName"`
	KatakanaName         string `json:"katakanaName"`
	ContactLastName      string `json:"contactLastName"`
	ContactFirstName     string `json:"contactFirstName"`
	ContactLastNameKana  string `json:"contactLastNameKana"`
	ContactFirstNameKana string `json:"contactFirstNameKana"`
	Position             string `json:"position"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	PostalCode           string `json:"postalCode"`
	Address              string `json:"address"`

	ApplicationType      string          `json:"applicationType"`
	NumberOfSubsidiaries string          `json:"numberOfSubsidiaries"`
	MainCompany          CompanyEntity   `json:"mainCompany"`
	Subsidiaries         []CompanyEntity `json:"subsidiaries"`

	ReportReceiving     string `json:"reportReceiving"`
	ReceiverAddress     string `json:"receiverAddress"`
	ReferrerName        string `json:"referrerName"`
	ReferrerCompanyName string `json:"referrerCompanyName"`
	ReferrerEmail       string `json:"referrerEmail"`
	ReferrerAddress     string `json:"referrerAddress"`

	Price   int64  `json:"price"`
	Voucher string `json:"voucher"`

	MaritalStatus              string `json:"maritalStatus"`
	NumberOfChildrenWithSpouse string `json:"numberOfChildrenWithSpouse"`
	NumberOfOtherChildren      string `json:"numberOfOtherChildren"`
	NumberOfChildren           string `json:"numberOfChildren"`
	NumberOfLivingParents      string `json:"numberOfLivingParents"`
	NumberOfLivingSiblings     string `json:"numberOfLivingSiblings"`

	OwnerName             string `json:"ownerName"`
	CashAndDeposits       string `json:"cashAndDeposits"`
	RetirementBenefits    string `json:"retirementBenefits"`
	RealEstate            string `json:"realEstate"`
	Securities            string `json:"securities"`
	AmountOfLifeInsurance string `json:"amountOfLifeInsurance"`
	OtherAssets           string `json:"otherAssets"`
	Debts                 string `json:"debts"`

	IncludeSpouseAssets         string `json:"includeSpouseAssets"`
	SpouseName                  string `json:"spouseName"`
	SpouseCashAndDeposits       string `json:"spouseCashAndDeposits"`
	SpouseRetirementBenefits    string `json:"spouseRetirementBenefits"`
	SpouseRealEstate            string `json:"spouseRealEstate"`
	SpouseSecurities            string `json:"spouseSecurities"`
	SpouseAmountOfLifeInsurance string `json:"spouseAmountOfLifeInsurance"`
	SpouseOtherAssets           string `json:"spouseOtherAssets"`
	SpouseDebts                 string `json:"spouseDebts"`

	CurrentSalary string `json:"currentSalary"`
	NumberOfYears string `json:"numberOfYears"`

	UserID string `json:"userId,omitempty"`
}

// Defaults returns a fresh form registered on the given day.
func Defaults(now time.Time) *FormState {
	return &FormState{
		RegistrationDate: now.Format(dateLayout),
		MainCompany:      NewCompanyEntity(),
		Subsidiaries:     []CompanyEntity{},
	}
}

// Clone returns a deep copy.
func (s *FormState) Clone() *FormState {
	c := *s
	c.Subsidiaries = make([]CompanyEntity, len(s.Subsidiaries))
	copy(c.Subsidiaries, s.Subsidiaries)
	return &c
}

// HasSubsidiaries reports whether the application covers subsidiaries.
func (s *FormState) HasSubsidiaries() bool {
	return s.ApplicationType == ApplicationTypeWithSubsidiaries
}

// SubsidiaryCount is the number of subsidiaries the form must carry: the
// parsed count clamped to [0, MaxSubsidiaries] when subsidiaries are
// included, otherwise 0.
func (s *FormState) SubsidiaryCount() int {
	if !s.HasSubsidiaries() {
		return 0
	}
	n := atoiOrZero(s.NumberOfSubsidiaries)
	if n > MaxSubsidiaries {
		n = MaxSubsidiaries
	}
	return n
}

// Companies returns the main company followed by the subsidiaries, with the
// entity each one is addressed by.
func (s *FormState) Companies() []EntityRef {
	refs := make([]EntityRef, 0, len(s.Subsidiaries)+1)
	refs = append(refs, EntityRef{Entity: MainCompany(), Company: &s.MainCompany})
	for i := range s.Subsidiaries {
		refs = append(refs, EntityRef{Entity: Subsidiary(i), Company: &s.Subsidiaries[i]})
	}
	return refs
}

// EntityRef pairs a company with its address in the form.
type EntityRef struct {
	Entity  Entity
	Company *CompanyEntity
}

// company resolves an entity, or nil if a subsidiary index is out of range.
func (s *FormState) company(e Entity) *CompanyEntity {
	if !e.subsidiary {
		return &s.MainCompany
	}
	if e.index < 0 || e.index >= len(s.Subsidiaries) {
		return nil
	}
	return &s.Subsidiaries[e.index]
}

// ChildCount sums every child-count field.
func (s *FormState) ChildCount() int {
	return atoiOrZero(s.NumberOfChildrenWithSpouse) +
		atoiOrZero(s.NumberOfOtherChildren) +
		atoiOrZero(s.NumberOfChildren)
}

func atoiOrZero(v string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
