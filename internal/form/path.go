package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPath = errors.New("invalid field path")

// Field identifies one editable leaf of the form.
type Field int

const (
	FieldUnknown Field = iota

	FieldRegistrationDate
	FieldLegalName
	FieldKatakanaName
	FieldContactLastName
	FieldContactFirstName
	FieldContactLastNameKana
	FieldContactFirstNameKana
	FieldPosition
	FieldEmail
	FieldPhone
	FieldPostalCode
	FieldAddress

	FieldApplicationType
	FieldNumberOfSubsidiaries

	FieldReportReceiving
	FieldReceiverAddress
	FieldReferrerName
	FieldReferrerCompanyName
	FieldReferrerEmail
	FieldReferrerAddress

	FieldVoucher

	FieldMaritalStatus
	FieldNumberOfChildrenWithSpouse
	FieldNumberOfOtherChildren
	FieldNumberOfChildren
	FieldNumberOfLivingParents
	FieldNumberOfLivingSiblings
	FieldOwnerName
	FieldCashAndDeposits
	FieldRetirementBenefits
	FieldRealEstate
	FieldSecurities
	FieldAmountOfLifeInsurance
	FieldOtherAssets
	FieldDebts
	FieldIncludeSpouseAssets
	FieldSpouseName
	FieldSpouseCashAndDeposits
	FieldSpouseRetirementBenefits
	FieldSpouseRealEstate
	FieldSpouseSecurities
	FieldSpouseAmountOfLifeInsurance
	FieldSpouseOtherAssets
	FieldSpouseDebts

	FieldCurrentSalary
	FieldNumberOfYears

	// company-scoped
	FieldCategory1
	FieldCategory2
	FieldCategory3
	FieldSpecialCase
	FieldRevenuePercentage1
	FieldRevenuePercentage2
	FieldRevenuePercentage3
	FieldProfit
	FieldDividends
)

type scope int

const (
	scopeForm scope = iota
	scopeTriple
	scopeIndustry
	scopeFinancial
)

type fieldDef struct {
	name      string
	kind      Kind
	group     string
	scope     scope
	form      func(*FormState) *string
	triple    func(*CategoryTriple) *string
	industry  func(*IndustrySelection) *string
	financial func(*FinancialInfo) *string
}

func formField(name string, kind Kind, group string, get func(*FormState) *string) fieldDef {
	return fieldDef{name: name, kind: kind, group: group, scope: scopeForm, form: get}
}

var fieldDefs = map[Field]fieldDef{
	FieldRegistrationDate:     formField("registrationDate", KindText, "applicant", func(s *FormState) *string { return &s.RegistrationDate }),
	FieldLegalName:            formField("legalName", KindText, "applicant", func(s *FormState) *string { return &s.LegalName }),
	FieldKatakanaName:         formField("katakanaName", KindText, "applicant", func(s *FormState) *string { return &s.KatakanaName }),
	FieldContactLastName:      formField("contactLastName", KindText, "applicant", func(s *FormState) *string { return &s.ContactLastName }),
	FieldContactFirstName:     formField("contactFirstName", KindText, "applicant", func(s *FormState) *string { return &s.ContactFirstName }),
	FieldContactLastNameKana:  formField("contactLastNameKana", KindText, "applicant", func(s *FormState) *string { return &s.ContactLastNameKana }),
	FieldContactFirstNameKana: formField("contactFirstNameKana", KindText, "applicant", func(s *FormState) *string { return &s.ContactFirstNameKana }),
	FieldPosition:             formField("position", KindText, "applicant", func(s *FormState) *string { return &s.Position }),
	FieldEmail:                formField("email", KindText, "applicant", func(s *FormState) *string { return &s.Email }),
	FieldPhone:                formField("phone", KindDigits, "applicant", func(s *FormState) *string { return &s.Phone }),
	FieldPostalCode:           formField("postalCode", KindText, "applicant", func(s *FormState) *string { return &s.PostalCode }),
	FieldAddress:              formField("address", KindText, "applicant", func(s *FormState) *string { return &s.Address }),

	FieldApplicationType:      formField("applicationType", KindChoice, "application", func(s *FormState) *string { return &s.ApplicationType }),
	FieldNumberOfSubsidiaries: formField("numberOfSubsidiaries", KindChoice, "application", func(s *FormState) *string { return &s.NumberOfSubsidiaries }),

	FieldReportReceiving:     formField("reportReceiving", KindChoice, "delivery", func(s *FormState) *string { return &s.ReportReceiving }),
	FieldReceiverAddress:     formField("receiverAddress", KindText, "delivery", func(s *FormState) *string { return &s.ReceiverAddress }),
	FieldReferrerName:        formField("referrerName", KindText, "delivery", func(s *FormState) *string { return &s.ReferrerName }),
	FieldReferrerCompanyName: formField("referrerCompanyName", KindText, "delivery", func(s *FormState) *string { return &s.ReferrerCompanyName }),
	FieldReferrerEmail:       formField("referrerEmail", KindText, "delivery", func(s *FormState) *string { return &s.ReferrerEmail }),
	FieldReferrerAddress:     formField("referrerAddress", KindText, "delivery", func(s *FormState) *string { return &s.ReferrerAddress }),

	FieldVoucher: formField("voucher", KindText, "pricing", func(s *FormState) *string { return &s.Voucher }),

	FieldMaritalStatus:               formField("maritalStatus", KindChoice, "inheritance", func(s *FormState) *string { return &s.MaritalStatus }),
	FieldNumberOfChildrenWithSpouse:  formField("numberOfChildrenWithSpouse", KindCount, "inheritance", func(s *FormState) *string { return &s.NumberOfChildrenWithSpouse }),
	FieldNumberOfOtherChildren:       formField("numberOfOtherChildren", KindCount, "inheritance", func(s *FormState) *string { return &s.NumberOfOtherChildren }),
	FieldNumberOfChildren:            formField("numberOfChildren", KindCount, "inheritance", func(s *FormState) *string { return &s.NumberOfChildren }),
	FieldNumberOfLivingParents:       formField("numberOfLivingParents", KindCount, "inheritance", func(s *FormState) *string { return &s.NumberOfLivingParents }),
	FieldNumberOfLivingSiblings:      formField("numberOfLivingSiblings", KindCount, "inheritance", func(s *FormState) *string { return &s.NumberOfLivingSiblings }),
	FieldOwnerName:                   formField("ownerName", KindText, "inheritance", func(s *FormState) *string { return &s.OwnerName }),
	FieldCashAndDeposits:             formField("cashAndDeposits", KindCurrency, "inheritance", func(s *FormState) *string { return &s.CashAndDeposits }),
	FieldRetirementBenefits:          formField("retirementBenefits", KindCurrency, "inheritance", func(s *FormState) *string { return &s.RetirementBenefits }),
	FieldRealEstate:                  formField("realEstate", KindCurrency, "inheritance", func(s *FormState) *string { return &s.RealEstate }),
	FieldSecurities:                  formField("securities", KindCurrency, "inheritance", func(s *FormState) *string { return &s.Securities }),
	FieldAmountOfLifeInsurance:       formField("amountOfLifeInsurance", KindCurrency, "inheritance", func(s *FormState) *string { return &s.AmountOfLifeInsurance }),
	FieldOtherAssets:                 formField("otherAssets", KindCurrency, "inheritance", func(s *FormState) *string { return &s.OtherAssets }),
	FieldDebts:                       formField("debts", KindCurrency, "inheritance", func(s *FormState) *string { return &s.Debts }),
	FieldIncludeSpouseAssets:         formField("includeSpouseAssets", KindChoice, "inheritance", func(s *FormState) *string { return &s.IncludeSpouseAssets }),
	FieldSpouseName:                  formField("spouseName", KindText, "inheritance", func(s *FormState) *string { return &s.SpouseName }),
	FieldSpouseCashAndDeposits:       formField("spouseCashAndDeposits", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseCashAndDeposits }),
	FieldSpouseRetirementBenefits:    formField("spouseRetirementBenefits", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseRetirementBenefits }),
	FieldSpouseRealEstate:            formField("spouseRealEstate", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseRealEstate }),
	FieldSpouseSecurities:            formField("spouseSecurities", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseSecurities }),
	FieldSpouseAmountOfLifeInsurance: formField("spouseAmountOfLifeInsurance", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseAmountOfLifeInsurance }),
	FieldSpouseOtherAssets:           formField("spouseOtherAssets", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseOtherAssets }),
	FieldSpouseDebts:                 formField("spouseDebts", KindCurrency, "inheritance", func(s *FormState) *string { return &s.SpouseDebts }),

	FieldCurrentSalary: formField("currentSalary", KindCurrency, "benefit", func(s *FormState) *string { return &s.CurrentSalary }),
	FieldNumberOfYears: formField("numberOfYears", KindCount, "benefit", func(s *FormState) *string { return &s.NumberOfYears }),

	FieldCategory1: {name: "category1", kind: KindChoice, group: "industry", scope: scopeTriple, triple: func(t *CategoryTriple) *string { return &t.Category1 }},
	FieldCategory2: {name: "category2", kind: KindChoice, group: "industry", scope: scopeTriple, triple: func(t *CategoryTriple) *string { return &t.Category2 }},
	FieldCategory3: {name: "category3", kind: KindChoice, group: "industry", scope: scopeTriple, triple: func(t *CategoryTriple) *string { return &t.Category3 }},

	FieldSpecialCase:        {name: "specialCase", kind: KindChoice, group: "industry", scope: scopeIndustry, industry: func(i *IndustrySelection) *string { return &i.SpecialCase }},
	FieldRevenuePercentage1: {name: "revenuePercentage1", kind: KindPercentage, group: "industry", scope: scopeIndustry, industry: func(i *IndustrySelection) *string { return &i.RevenuePercentage1 }},
	FieldRevenuePercentage2: {name: "revenuePercentage2", kind: KindPercentage, group: "industry", scope: scopeIndustry, industry: func(i *IndustrySelection) *string { return &i.RevenuePercentage2 }},
	FieldRevenuePercentage3: {name: "revenuePercentage3", kind: KindPercentage, group: "industry", scope: scopeIndustry, industry: func(i *IndustrySelection) *string { return &i.RevenuePercentage3 }},

	FieldProfit:    {name: "profit", kind: KindCurrency, group: "financial", scope: scopeFinancial, financial: func(f *FinancialInfo) *string { return &f.Profit }},
	FieldDividends: {name: "dividends", kind: KindCurrency, group: "financial", scope: scopeFinancial, financial: func(f *FinancialInfo) *string { return &f.Dividends }},
}

var (
	formFieldsByName    = map[string]Field{}
	companyFieldsByName = map[string]Field{}
)

func init() {
	for f, def := range fieldDefs {
		if def.scope == scopeForm {
			formFieldsByName[def.name] = f
		} else {
			companyFieldsByName[def.name] = f
		}
	}
}

func (f Field) String() string {
	if def, ok := fieldDefs[f]; ok {
		return def.name
	}
	return "unknown"
}

// CompanyScoped reports whether the field lives inside a CompanyEntity.
func (f Field) CompanyScoped() bool {
	def, ok := fieldDefs[f]
	return ok && def.scope != scopeForm
}

// Entity addresses the main company or one subsidiary by position.
type Entity struct {
	subsidiary bool
	index      int
}

func MainCompany() Entity         { return Entity{} }
func Subsidiary(index int) Entity { return Entity{subsidiary: true, index: index} }

func (e Entity) IsSubsidiary() bool { return e.subsidiary }
func (e Entity) Index() int         { return e.index }

func (e Entity) String() string {
	if e.subsidiary {
		return "subsidiaries." + strconv.Itoa(e.index)
	}
	return "mainCompany"
}

// Slot is the rank of a revenue source within an IndustrySelection.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotSecond
	SlotThird
)

// Slots lists every revenue-source rank.
var Slots = []Slot{SlotPrimary, SlotSecond, SlotThird}

func (s Slot) key() string {
	switch s {
	case SlotSecond:
		return "secondSource"
	case SlotThird:
		return "thirdSource"
	default:
		return ""
	}
}

// Path is a typed address of one editable leaf.
type Path struct {
	Field  Field
	Entity Entity
	Slot   Slot
}

// At addresses a form-level field.
func At(f Field) Path { return Path{Field: f} }

// Of addresses a company field of e.
func (e Entity) Of(f Field) Path { return Path{Field: f, Entity: e} }

// InSlot moves a category path to another revenue-source rank.
func (p Path) InSlot(s Slot) Path {
	p.Slot = s
	return p
}

func (p Path) Kind() Kind {
	return fieldDefs[p.Field].kind
}

// Group is the coarse field family used for metrics labels.
func (p Path) Group() string {
	if def, ok := fieldDefs[p.Field]; ok {
		return def.group
	}
	return "unknown"
}

func (p Path) segments() []string {
	def, ok := fieldDefs[p.Field]
	if !ok {
		return nil
	}
	if def.scope == scopeForm {
		return []string{def.name}
	}
	segs := []string{p.Entity.String()}
	switch def.scope {
	case scopeFinancial:
		segs = append(segs, "financial")
	default:
		segs = append(segs, "industry")
		if def.scope == scopeTriple && p.Slot != SlotPrimary {
			segs = append(segs, p.Slot.key())
		}
	}
	return append(segs, def.name)
}

// String renders the dot-delimited form the front end uses, e.g.
// "subsidiaries.1.industry.category1".
func (p Path) String() string {
	return strings.Join(p.segments(), ".")
}

// ValidationKey renders the path the way validation errors report it, e.g.
// "subsidiaries[1].industry.category1".
func (p Path) ValidationKey() string {
	s := p.String()
	if !p.Entity.subsidiary || !p.Field.CompanyScoped() {
		return s
	}
	prefix := p.Entity.String()
	return fmt.Sprintf("subsidiaries[%d]%s", p.Entity.index, strings.TrimPrefix(s, prefix))
}

// ParsePath converts a dot-delimited (or bracket-indexed) field path.
func ParsePath(raw string) (Path, error) {
	norm := strings.NewReplacer("[", ".", "]", "").Replace(strings.TrimSpace(raw))
	parts := strings.Split(norm, ".")
	invalid := fmt.Errorf("%w: %q", ErrInvalidPath, raw)

	if len(parts) == 1 {
		if f, ok := formFieldsByName[parts[0]]; ok {
			return At(f), nil
		}
		return Path{}, invalid
	}

	var entity Entity
	var rest []string
	switch parts[0] {
	case "mainCompany":
		entity, rest = MainCompany(), parts[1:]
	case "subsidiaries":
		if len(parts) < 3 {
			return Path{}, invalid
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 0 || idx >= MaxSubsidiaries {
			return Path{}, invalid
		}
		entity, rest = Subsidiary(idx), parts[2:]
	default:
		return Path{}, invalid
	}

	slot := SlotPrimary
	switch {
	case len(rest) == 2:
	case len(rest) == 3 && rest[0] == "industry" && rest[1] == SlotSecond.key():
		slot, rest = SlotSecond, []string{rest[0], rest[2]}
	case len(rest) == 3 && rest[0] == "industry" && rest[1] == SlotThird.key():
		slot, rest = SlotThird, []string{rest[0], rest[2]}
	default:
		return Path{}, invalid
	}

	f, ok := companyFieldsByName[rest[1]]
	if !ok {
		return Path{}, invalid
	}
	def := fieldDefs[f]
	switch {
	case rest[0] == "financial" && def.scope == scopeFinancial:
	case rest[0] == "industry" && def.scope == scopeTriple:
	case rest[0] == "industry" && def.scope == scopeIndustry && slot == SlotPrimary:
	default:
		return Path{}, invalid
	}
	return Path{Field: f, Entity: entity, Slot: slot}, nil
}

// ptr resolves p to its storage. With grow set, missing subsidiaries up to
// the addressed index are created.
func (s *FormState) ptr(p Path, grow bool) (*string, error) {
	def, ok := fieldDefs[p.Field]
	if !ok {
		return nil, fmt.Errorf("%w: field %d", ErrInvalidPath, p.Field)
	}
	if def.scope == scopeForm {
		return def.form(s), nil
	}

	if p.Entity.subsidiary {
		if p.Entity.index < 0 || p.Entity.index >= MaxSubsidiaries {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
		for grow && len(s.Subsidiaries) <= p.Entity.index {
			s.Subsidiaries = append(s.Subsidiaries, NewSubsidiary())
		}
	}
	c := s.company(p.Entity)
	if c == nil {
		return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidPath, p)
	}

	switch def.scope {
	case scopeTriple:
		return def.triple(c.Industry.Slot(p.Slot)), nil
	case scopeIndustry:
		return def.industry(&c.Industry), nil
	default:
		return def.financial(&c.Financial), nil
	}
}

// Get reads the value at p.
func (s *FormState) Get(p Path) (string, error) {
	v, err := s.ptr(p, false)
	if err != nil {
		return "", err
	}
	return *v, nil
}

// Set writes v at p, creating subsidiary entries along the way.
func (s *FormState) Set(p Path, v string) error {
	ptr, err := s.ptr(p, true)
	if err != nil {
		return err
	}
	*ptr = v
	return nil
}
