package form

import (
	"fmt"
	"regexp"

	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

var (
	katakanaPattern   = regexp.MustCompile(`^[\x{30A0}-\x{30FF}\x{FF65}-\x{FF9F}\s\x{3000}]+$`)
	postalCodePattern = regexp.MustCompile(`^\d{3}-?\d{4}$`)
	amountPattern     = regexp.MustCompile(`^[\d,]+$`)
	countPattern      = regexp.MustCompile(`^\d+$`)
)

const (
	msgDigitsOnly   = "数字のみ入力してください"
	msgValidAmount  = "有効な金額を入力してください"
	msgValidNumber  = "有効な数値を入力してください"
	msgKatakana     = "カタカナで入力してください"
	msgPercentRange = "0から100の数値を入力してください"
)

type formRule = validation.Rule[*FormState]
type industryRule = validation.Rule[*IndustrySelection]

// Validator checks a FormState against the application rules.
type Validator struct {
	schema *validation.Schema[*FormState]
}

func NewValidator(tax *taxonomy.Taxonomy) *Validator {
	return &Validator{schema: newFormSchema(tax)}
}

// Validate returns every violation in form order.
func (v *Validator) Validate(s *FormState) *validation.ValidationResult {
	return v.schema.Validate(s)
}

// ValidatePath returns the violations at or below one field path.
func (v *Validator) ValidatePath(s *FormState, p Path) []validation.ValidationError {
	return v.schema.ValidateField(s, p.ValidationKey())
}

func amountRules[T any](label string) []validation.Rule[T] {
	return []validation.Rule[T]{
		validation.Matches[T](amountPattern, label+msgDigitsOnly),
		validation.IntBetween[T](0, MaxAmount, msgValidAmount),
	}
}

func countRules[T any]() []validation.Rule[T] {
	return []validation.Rule[T]{
		validation.Matches[T](countPattern, msgDigitsOnly),
		validation.IntBetween[T](0, 99, msgValidNumber),
	}
}

func with[T any](head []validation.Rule[T], tail ...validation.Rule[T]) []validation.Rule[T] {
	return append(append([]validation.Rule[T]{}, head...), tail...)
}

// addTriple declares one category triple. Lower levels are required only
// when the level above is set and has children; active gates the whole
// triple (nil for always).
func addTriple(s *validation.Schema[*IndustrySelection], tax *taxonomy.Taxonomy, slot Slot, label string, active func(*IndustrySelection) bool) {
	prefix := ""
	if k := slot.key(); k != "" {
		prefix = k + "."
	}
	on := func(i *IndustrySelection) bool { return active == nil || active(i) }
	triple := func(i *IndustrySelection) *CategoryTriple { return i.Slot(slot) }

	s.Field(prefix+"category1", func(i *IndustrySelection) string { return triple(i).Category1 },
		validation.OnlyWhen(on),
		validation.Required[*IndustrySelection](label+"業種カテゴリー1は必須です"),
		validation.Test(validation.CodeEnum, "業種カテゴリー1が正しくありません", func(v string, _ *IndustrySelection) bool {
			n, ok := tax.Lookup(v)
			return ok && n.ParentID == nil
		}))
	s.Field(prefix+"category2", func(i *IndustrySelection) string { return triple(i).Category2 },
		validation.OnlyWhen(on),
		validation.RequiredWhen(func(i *IndustrySelection) bool {
			c1 := triple(i).Category1
			return c1 != "" && tax.HasChildrenKey(c1)
		}, label+"業種カテゴリー2は必須です"))
	s.Field(prefix+"category3", func(i *IndustrySelection) string { return triple(i).Category3 },
		validation.OnlyWhen(on),
		validation.RequiredWhen(func(i *IndustrySelection) bool {
			c2 := triple(i).Category2
			return c2 != "" && tax.HasChildrenKey(c2)
		}, label+"業種カテゴリー3は必須です"))
}

func newIndustrySchema(tax *taxonomy.Taxonomy) *validation.Schema[*IndustrySelection] {
	under50 := func(i *IndustrySelection) bool { return i.SpecialCase == SpecialCaseUnder50 }
	percent := func(required string) []industryRule {
		return []industryRule{
			validation.OnlyWhen(under50),
			validation.RequiredWhen(under50, required),
			validation.Matches[*IndustrySelection](countPattern, msgDigitsOnly),
			validation.IntBetween[*IndustrySelection](0, 100, msgPercentRange),
		}
	}

	s := validation.NewSchema[*IndustrySelection]()
	addTriple(s, tax, SlotPrimary, "", nil)
	s.Field("specialCase", func(i *IndustrySelection) string { return i.SpecialCase },
		validation.Required[*IndustrySelection]("業種区分特例は必須です"),
		validation.OneOf[*IndustrySelection]("業種区分特例が正しくありません", SpecialCaseOver50, SpecialCaseUnder50))
	s.Field("revenuePercentage1", func(i *IndustrySelection) string { return i.RevenuePercentage1 },
		percent("主たる事業の売上は必須です")...)
	s.Field("revenuePercentage2", func(i *IndustrySelection) string { return i.RevenuePercentage2 },
		percent("２位の売上は必須です")...)
	addTriple(s, tax, SlotSecond, "２位の", under50)
	s.Field("revenuePercentage3", func(i *IndustrySelection) string { return i.RevenuePercentage3 },
		validation.OnlyWhen(under50),
		validation.RequiredWhen(func(i *IndustrySelection) bool { return i.NeedsThirdSource() }, "３位の売上は必須です"),
		validation.Matches[*IndustrySelection](countPattern, msgDigitsOnly),
		validation.IntBetween[*IndustrySelection](0, 100, msgPercentRange))
	addTriple(s, tax, SlotThird, "３位の", func(i *IndustrySelection) bool { return i.NeedsThirdSource() })
	return s
}

func newFinancialSchema() *validation.Schema[*FinancialInfo] {
	return validation.NewSchema[*FinancialInfo]().
		Field("profit", func(f *FinancialInfo) string { return f.Profit },
			with(amountRules[*FinancialInfo]("利益は"), validation.Required[*FinancialInfo]("利益は必須です"))...).
		Field("dividends", func(f *FinancialInfo) string { return f.Dividends },
			with(amountRules[*FinancialInfo]("配当金は"), validation.Required[*FinancialInfo]("配当金は必須です"))...)
}

func newCompanySchema(tax *taxonomy.Taxonomy) *validation.Schema[*CompanyEntity] {
	s := validation.NewSchema[*CompanyEntity]()
	validation.Nest(s, "industry", func(c *CompanyEntity) *IndustrySelection { return &c.Industry }, newIndustrySchema(tax))
	validation.Nest(s, "financial", func(c *CompanyEntity) *FinancialInfo { return &c.Financial }, newFinancialSchema())
	return s
}

func newFormSchema(tax *taxonomy.Taxonomy) *validation.Schema[*FormState] {
	viaReferrer := func(s *FormState) bool { return s.ReportReceiving == DeliveryViaReferrer }
	married := func(s *FormState) bool { return s.MaritalStatus == MaritalStatusMarried }
	single := func(s *FormState) bool { return s.MaritalStatus == MaritalStatusSingle }
	noChildren := func(s *FormState) bool { return s.ChildCount() == 0 }
	spouseAssets := func(s *FormState) bool { return s.IncludeSpouseAssets == IncludeSpouseAssetsYes }

	company := newCompanySchema(tax)

	s := validation.NewSchema[*FormState]().
		Field("registrationDate", func(s *FormState) string { return s.RegistrationDate },
			validation.Required[*FormState]("登録日は必須です")).
		Field("legalName", func(s *FormState) string { return s.LegalName },
			validation.Required[*FormState]("法人名は必須です")).
		Field("katakanaName", func(s *FormState) string { return s.KatakanaName },
			validation.Required[*FormState]("カタカナ名は必須です"),
			validation.Matches[*FormState](katakanaPattern, msgKatakana)).
		Field("contactLastName", func(s *FormState) string { return s.ContactLastName },
			validation.Required[*FormState]("担当者姓は必須です")).
		Field("contactFirstName", func(s *FormState) string { return s.ContactFirstName },
			validation.Required[*FormState]("担当者名は必須です")).
		Field("contactLastNameKana", func(s *FormState) string { return s.ContactLastNameKana },
			validation.Required[*FormState]("担当者姓（カタカナ）は必須です"),
			validation.Matches[*FormState](katakanaPattern, msgKatakana)).
		Field("contactFirstNameKana", func(s *FormState) string { return s.ContactFirstNameKana },
			validation.Required[*FormState]("担当者名（カタカナ）は必須です"),
			validation.Matches[*FormState](katakanaPattern, msgKatakana)).
		Field("email", func(s *FormState) string { return s.Email },
			validation.Required[*FormState]("メールアドレスは必須です"),
			validation.Matches[*FormState](validation.EmailPattern, "有効なメールアドレスを入力してください")).
		Field("phone", func(s *FormState) string { return s.Phone },
			validation.Required[*FormState]("電話番号は必須です"),
			validation.Matches[*FormState](validation.PhonePattern, "電話番号は10桁または11桁で入力してください")).
		Field("postalCode", func(s *FormState) string { return s.PostalCode },
			validation.Matches[*FormState](postalCodePattern, "郵便番号は7桁で入力してください")).
		Field("reportReceiving", func(s *FormState) string { return s.ReportReceiving },
			validation.Required[*FormState]("レポート受信方法は必須です"),
			validation.OneOf[*FormState]("レポート受信方法が正しくありません", DeliveryViaReferrer, DeliveryByPost)).
		Field("receiverAddress", func(s *FormState) string { return s.ReceiverAddress },
			validation.RequiredWhen(func(s *FormState) bool { return s.ReportReceiving == DeliveryByPost }, "レポート送付先住所は必須です")).
		Field("referrerName", func(s *FormState) string { return s.ReferrerName },
			validation.RequiredWhen(viaReferrer, "紹介者名は必須です")).
		Field("referrerCompanyName", func(s *FormState) string { return s.ReferrerCompanyName },
			validation.RequiredWhen(viaReferrer, "紹介者会社名は必須です")).
		Field("referrerEmail", func(s *FormState) string { return s.ReferrerEmail },
			validation.RequiredWhen(viaReferrer, "紹介者メールアドレスは必須です"),
			validation.Matches[*FormState](validation.EmailPattern, "有効なメールアドレスを入力してください")).
		Field("applicationType", func(s *FormState) string { return s.ApplicationType },
			validation.Required[*FormState]("申請種別は必須です"),
			validation.OneOf[*FormState]("申請種別が正しくありません", ApplicationTypeMainOnly, ApplicationTypeWithSubsidiaries)).
		Field("numberOfSubsidiaries", func(s *FormState) string { return s.NumberOfSubsidiaries },
			validation.OnlyWhen((*FormState).HasSubsidiaries),
			validation.Required[*FormState]("子会社数を選択してください"),
			validation.Matches[*FormState](countPattern, msgDigitsOnly),
			validation.IntBetween[*FormState](0, MaxSubsidiaries, fmt.Sprintf("子会社数は0から%dで選択してください", MaxSubsidiaries)))

	validation.Nest(s, "mainCompany", func(s *FormState) *CompanyEntity { return &s.MainCompany }, company)
	validation.Each(s, "subsidiaries",
		func(s *FormState) []*CompanyEntity {
			out := make([]*CompanyEntity, len(s.Subsidiaries))
			for i := range s.Subsidiaries {
				out[i] = &s.Subsidiaries[i]
			}
			return out
		},
		company,
		validation.EachOptions[*FormState]{
			When:           (*FormState).HasSubsidiaries,
			Count:          (*FormState).SubsidiaryCount,
			Label:          func(i int) string { return fmt.Sprintf("子会社%dの", i+1) },
			MissingMessage: "情報は必須です",
		})

	s.
		Field("maritalStatus", func(s *FormState) string { return s.MaritalStatus },
			validation.Required[*FormState]("配偶者の有無は必須です"),
			validation.OneOf[*FormState]("配偶者の有無が正しくありません", MaritalStatusMarried, MaritalStatusSingle)).
		Field("numberOfChildrenWithSpouse", func(s *FormState) string { return s.NumberOfChildrenWithSpouse },
			with(countRules[*FormState](),
				validation.OnlyWhen(married),
				validation.Required[*FormState]("現在の配偶者との間のお子様の人数は必須です"))...).
		Field("numberOfOtherChildren", func(s *FormState) string { return s.NumberOfOtherChildren },
			with(countRules[*FormState](),
				validation.OnlyWhen(married),
				validation.Required[*FormState]("上記以外のお子様の人数は必須です"))...).
		Field("numberOfChildren", func(s *FormState) string { return s.NumberOfChildren },
			with(countRules[*FormState](),
				validation.OnlyWhen(single),
				validation.Required[*FormState]("お子様の人数は必須です"))...).
		Field("numberOfLivingParents", func(s *FormState) string { return s.NumberOfLivingParents },
			with(countRules[*FormState](),
				validation.RequiredWhen(noChildren, "ご存命のご両親の人数は必須です"))...).
		Field("numberOfLivingSiblings", func(s *FormState) string { return s.NumberOfLivingSiblings },
			with(countRules[*FormState](),
				validation.RequiredWhen(noChildren, "ご存命のご兄弟の人数は必須です"))...)

	for _, f := range []struct {
		name string
		get  func(*FormState) string
	}{
		{"cashAndDeposits", func(s *FormState) string { return s.CashAndDeposits }},
		{"retirementBenefits", func(s *FormState) string { return s.RetirementBenefits }},
		{"realEstate", func(s *FormState) string { return s.RealEstate }},
		{"securities", func(s *FormState) string { return s.Securities }},
		{"amountOfLifeInsurance", func(s *FormState) string { return s.AmountOfLifeInsurance }},
		{"otherAssets", func(s *FormState) string { return s.OtherAssets }},
		{"debts", func(s *FormState) string { return s.Debts }},
	} {
		s.Field(f.name, f.get, amountRules[*FormState]("")...)
	}

	s.
		Field("includeSpouseAssets", func(s *FormState) string { return s.IncludeSpouseAssets },
			validation.Required[*FormState]("配偶者の財産を含めるかを選択してください"),
			validation.OneOf[*FormState]("配偶者の財産の選択が正しくありません", IncludeSpouseAssetsYes, IncludeSpouseAssetsNo)).
		Field("spouseName", func(s *FormState) string { return s.SpouseName },
			validation.RequiredWhen(spouseAssets, "配偶者氏名は必須です"))

	for _, f := range []struct {
		name string
		get  func(*FormState) string
	}{
		{"spouseCashAndDeposits", func(s *FormState) string { return s.SpouseCashAndDeposits }},
		{"spouseRetirementBenefits", func(s *FormState) string { return s.SpouseRetirementBenefits }},
		{"spouseRealEstate", func(s *FormState) string { return s.SpouseRealEstate }},
		{"spouseSecurities", func(s *FormState) string { return s.SpouseSecurities }},
		{"spouseAmountOfLifeInsurance", func(s *FormState) string { return s.SpouseAmountOfLifeInsurance }},
		{"spouseOtherAssets", func(s *FormState) string { return s.SpouseOtherAssets }},
		{"spouseDebts", func(s *FormState) string { return s.SpouseDebts }},
	} {
		s.Field(f.name, f.get, with([]formRule{validation.OnlyWhen(spouseAssets)}, amountRules[*FormState]("")...)...)
	}

	s.
		Field("currentSalary", func(s *FormState) string { return s.CurrentSalary },
			with(amountRules[*FormState](""), validation.Required[*FormState]("現在の給与は必須です"))...).
		Field("numberOfYears", func(s *FormState) string { return s.NumberOfYears },
			validation.Required[*FormState]("勤続年数は必須です"),
			validation.Matches[*FormState](amountPattern, msgDigitsOnly),
			validation.IntBetween[*FormState](0, 99, msgValidNumber))

	return s
}
