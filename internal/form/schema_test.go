package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

func validForm() *FormState {
	return &FormState{
		RegistrationDate:     "2026-10-18",
		LegalName:            "株式会社サンプル",
		KatakanaName:         "カブシキガイシャ　サンプル",
		ContactLastName:      "山田",
		ContactFirstName:     "太郎",
		ContactLastNameKana:  "ヤマダ",
		ContactFirstNameKana: "タロウ",
		Email:                "taro@example.com",
		Phone:                "0312345678",
		PostalCode:           "100-0001",
		ReportReceiving:      DeliveryByPost,
		ReceiverAddress:      "東京都千代田区千代田1-1",
		ApplicationType:      ApplicationTypeMainOnly,
		NumberOfSubsidiaries: "0",
		MainCompany: CompanyEntity{
			Industry: IndustrySelection{
				CategoryTriple: CategoryTriple{Category1: "21"},
				SpecialCase:    SpecialCaseOver50,
			},
			Financial: FinancialInfo{Profit: "1,000,000", Dividends: "0"},
		},
		Subsidiaries:        []CompanyEntity{},
		MaritalStatus:       MaritalStatusSingle,
		NumberOfChildren:    "1",
		IncludeSpouseAssets: IncludeSpouseAssetsNo,
		CurrentSalary:       "6,000,000",
		NumberOfYears:       "12",
	}
}

func validSubsidiary() CompanyEntity {
	c := NewSubsidiary()
	c.Industry.CategoryTriple = CategoryTriple{Category1: "22", Category2: "26"}
	c.Industry.SpecialCase = SpecialCaseOver50
	c.Financial = FinancialInfo{Profit: "500,000", Dividends: "0"}
	return c
}

func errorFields(res *validation.ValidationResult) []string {
	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidator_ValidForm(t *testing.T) {
	v := NewValidator(taxonomy.MustDefault())
	res := v.Validate(validForm())
	assert.True(t, res.Valid, "unexpected errors: %v", res.GetErrorMessages())
	assert.Empty(t, res.Errors)
}

func TestValidator_Matrix(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *FormState)
		want      map[string]string
		wantCodes map[string]string
		absent    []string
	}{
		{
			name: "missing application type skips malformed count",
			mutate: func(s *FormState) {
				s.ApplicationType = ""
				s.NumberOfSubsidiaries = "abc"
			},
			want:   map[string]string{"applicationType": "申請種別は必須です"},
			absent: []string{"numberOfSubsidiaries"},
		},
		{
			name: "main company only ignores count",
			mutate: func(s *FormState) {
				s.NumberOfSubsidiaries = ""
			},
			absent: []string{"numberOfSubsidiaries"},
		},
		{
			name: "missing category of second subsidiary",
			mutate: func(s *FormState) {
				s.ApplicationType = ApplicationTypeWithSubsidiaries
				s.NumberOfSubsidiaries = "2"
				second := validSubsidiary()
				second.Industry.CategoryTriple = CategoryTriple{}
				s.Subsidiaries = []CompanyEntity{validSubsidiary(), second}
			},
			want:      map[string]string{"subsidiaries[1].industry.category1": "子会社2の業種カテゴリー1は必須です"},
			wantCodes: map[string]string{"subsidiaries[1].industry.category1": validation.CodeRequired},
			absent:    []string{"subsidiaries[0].industry.category1"},
		},
		{
			name: "declared subsidiary absent from list",
			mutate: func(s *FormState) {
				s.ApplicationType = ApplicationTypeWithSubsidiaries
				s.NumberOfSubsidiaries = "2"
				s.Subsidiaries = []CompanyEntity{validSubsidiary()}
			},
			want: map[string]string{"subsidiaries[1]": "子会社2の情報は必須です"},
		},
		{
			name: "subsidiary count out of range",
			mutate: func(s *FormState) {
				s.ApplicationType = ApplicationTypeWithSubsidiaries
				s.NumberOfSubsidiaries = "5"
				s.Subsidiaries = []CompanyEntity{validSubsidiary(), validSubsidiary(), validSubsidiary(), validSubsidiary()}
			},
			want: map[string]string{"numberOfSubsidiaries": "子会社数は0から4で選択してください"},
		},
		{
			name: "subsidiaries beyond count are not validated",
			mutate: func(s *FormState) {
				s.ApplicationType = ApplicationTypeWithSubsidiaries
				s.NumberOfSubsidiaries = "1"
				s.Subsidiaries = []CompanyEntity{validSubsidiary(), NewSubsidiary()}
			},
			absent: []string{"subsidiaries[1].industry.category1"},
		},
		{
			name: "category2 required when category1 has children",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.CategoryTriple = CategoryTriple{Category1: "1"}
			},
			want:   map[string]string{"mainCompany.industry.category2": "業種カテゴリー2は必須です"},
			absent: []string{"mainCompany.industry.category3"},
		},
		{
			name: "category3 required when category2 has children",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.CategoryTriple = CategoryTriple{Category1: "1", Category2: "2"}
			},
			want: map[string]string{"mainCompany.industry.category3": "業種カテゴリー3は必須です"},
		},
		{
			name: "leaf category2 needs no category3",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.CategoryTriple = CategoryTriple{Category1: "12", Category2: "20"}
			},
			absent: []string{"mainCompany.industry.category3"},
		},
		{
			name: "unknown category1",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.CategoryTriple = CategoryTriple{Category1: "2"}
			},
			wantCodes: map[string]string{"mainCompany.industry.category1": validation.CodeEnum},
		},
		{
			name: "over50 ignores revenue fields",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.RevenuePercentage1 = "abc"
				s.MainCompany.Industry.RevenuePercentage2 = "900"
			},
			absent: []string{"mainCompany.industry.revenuePercentage1", "mainCompany.industry.revenuePercentage2", "mainCompany.industry.secondSource.category1"},
		},
		{
			name: "under50 below threshold requires third source",
			mutate: func(s *FormState) {
				ind := &s.MainCompany.Industry
				ind.SpecialCase = SpecialCaseUnder50
				ind.RevenuePercentage1 = "20"
				ind.RevenuePercentage2 = "25"
			},
			want: map[string]string{
				"mainCompany.industry.revenuePercentage3":     "３位の売上は必須です",
				"mainCompany.industry.secondSource.category1": "２位の業種カテゴリー1は必須です",
				"mainCompany.industry.thirdSource.category1":  "３位の業種カテゴリー1は必須です",
			},
		},
		{
			name: "under50 at threshold needs no third source",
			mutate: func(s *FormState) {
				ind := &s.MainCompany.Industry
				ind.SpecialCase = SpecialCaseUnder50
				ind.RevenuePercentage1 = "30"
				ind.RevenuePercentage2 = "25"
				ind.SecondSource = CategoryTriple{Category1: "51"}
			},
			absent: []string{"mainCompany.industry.revenuePercentage3", "mainCompany.industry.thirdSource.category1"},
		},
		{
			name: "under50 requires top two shares",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.SpecialCase = SpecialCaseUnder50
				s.MainCompany.Industry.RevenuePercentage2 = "120"
			},
			want: map[string]string{
				"mainCompany.industry.revenuePercentage1": "主たる事業の売上は必須です",
				"mainCompany.industry.revenuePercentage2": "0から100の数値を入力してください",
			},
		},
		{
			name: "special case required",
			mutate: func(s *FormState) {
				s.MainCompany.Industry.SpecialCase = ""
			},
			want: map[string]string{"mainCompany.industry.specialCase": "業種区分特例は必須です"},
		},
		{
			name: "financial fields",
			mutate: func(s *FormState) {
				s.MainCompany.Financial = FinancialInfo{Profit: "", Dividends: "12a"}
			},
			want: map[string]string{
				"mainCompany.financial.profit":    "利益は必須です",
				"mainCompany.financial.dividends": "配当金は数字のみ入力してください",
			},
		},
		{
			name: "referrer delivery",
			mutate: func(s *FormState) {
				s.ReportReceiving = DeliveryViaReferrer
				s.ReceiverAddress = ""
				s.ReferrerEmail = "not-an-email"
			},
			want: map[string]string{
				"referrerName":        "紹介者名は必須です",
				"referrerCompanyName": "紹介者会社名は必須です",
				"referrerEmail":       "有効なメールアドレスを入力してください",
			},
			absent: []string{"receiverAddress"},
		},
		{
			name: "postal delivery needs address",
			mutate: func(s *FormState) {
				s.ReceiverAddress = ""
			},
			want: map[string]string{"receiverAddress": "レポート送付先住所は必須です"},
		},
		{
			name: "contact fields",
			mutate: func(s *FormState) {
				s.KatakanaName = "かたかな"
				s.Email = "taro@"
				s.Phone = "03123"
			},
			want: map[string]string{
				"katakanaName": "カタカナで入力してください",
				"email":        "有効なメールアドレスを入力してください",
				"phone":        "電話番号は10桁または11桁で入力してください",
			},
			wantCodes: map[string]string{"email": validation.CodePattern},
		},
		{
			name: "married needs both child counts",
			mutate: func(s *FormState) {
				s.MaritalStatus = MaritalStatusMarried
			},
			want: map[string]string{
				"numberOfChildrenWithSpouse": "現在の配偶者との間のお子様の人数は必須です",
				"numberOfOtherChildren":      "上記以外のお子様の人数は必須です",
			},
			absent: []string{"numberOfChildren"},
		},
		{
			name: "no children requires parents and siblings",
			mutate: func(s *FormState) {
				s.NumberOfChildren = "0"
			},
			want: map[string]string{
				"numberOfLivingParents":  "ご存命のご両親の人数は必須です",
				"numberOfLivingSiblings": "ご存命のご兄弟の人数は必須です",
			},
		},
		{
			name: "spouse assets included",
			mutate: func(s *FormState) {
				s.IncludeSpouseAssets = IncludeSpouseAssetsYes
				s.SpouseRealEstate = "1,2x"
			},
			want: map[string]string{
				"spouseName":       "配偶者氏名は必須です",
				"spouseRealEstate": "数字のみ入力してください",
			},
		},
		{
			name: "spouse assets excluded are ignored",
			mutate: func(s *FormState) {
				s.SpouseRealEstate = "1,2x"
			},
			absent: []string{"spouseName", "spouseRealEstate"},
		},
		{
			name: "amount above maximum",
			mutate: func(s *FormState) {
				s.CurrentSalary = "1,000,000,000,000"
				s.Debts = "999,999,999,999"
			},
			want:      map[string]string{"currentSalary": "有効な金額を入力してください"},
			wantCodes: map[string]string{"currentSalary": validation.CodeRange},
			absent:    []string{"debts"},
		},
		{
			name: "years of service",
			mutate: func(s *FormState) {
				s.NumberOfYears = "100"
			},
			want: map[string]string{"numberOfYears": "有効な数値を入力してください"},
		},
	}

	v := NewValidator(taxonomy.MustDefault())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validForm()
			tt.mutate(s)
			res := v.Validate(s)

			if len(tt.want) == 0 && len(tt.wantCodes) == 0 {
				assert.True(t, res.Valid, "unexpected errors: %v", res.GetErrorMessages())
			} else {
				assert.False(t, res.Valid)
			}
			for field, msg := range tt.want {
				errs := res.GetErrorsForField(field)
				require.NotEmpty(t, errs, "expected error at %s, got %v", field, errorFields(res))
				assert.Equal(t, field, errs[0].Field)
				assert.Equal(t, msg, errs[0].Message)
			}
			for field, code := range tt.wantCodes {
				errs := res.GetErrorsForField(field)
				require.NotEmpty(t, errs, "expected error at %s, got %v", field, errorFields(res))
				assert.Equal(t, code, errs[0].Code)
			}
			for _, field := range tt.absent {
				assert.False(t, res.HasErrors(field), "unexpected error at %s", field)
			}
		})
	}
}

func TestValidator_ValidatePath(t *testing.T) {
	v := NewValidator(taxonomy.MustDefault())
	s := validForm()
	s.ApplicationType = ApplicationTypeWithSubsidiaries
	s.NumberOfSubsidiaries = "2"
	broken := NewSubsidiary()
	s.Subsidiaries = []CompanyEntity{validSubsidiary(), broken}
	s.Email = ""

	errs := v.ValidatePath(s, Subsidiary(1).Of(FieldCategory1))
	require.Len(t, errs, 1)
	assert.Equal(t, "subsidiaries[1].industry.category1", errs[0].Field)

	assert.Empty(t, v.ValidatePath(s, Subsidiary(0).Of(FieldCategory1)))

	errs = v.ValidatePath(s, At(FieldEmail))
	require.Len(t, errs, 1)
	assert.Equal(t, "メールアドレスは必須です", errs[0].Message)
}
