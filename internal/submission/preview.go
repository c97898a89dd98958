// Package submission builds the confirmation preview of a finished form and
// posts it to the valuation backend.
package submission

import (
	"fmt"
	"strings"

	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

// Item is one labelled value on the confirmation screen.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Group is a titled block of items inside a section. Title may be empty.
type Group struct {
	Title string `json:"title,omitempty"`
	Items []Item `json:"items"`
}

type Section struct {
	Title  string  `json:"title"`
	Groups []Group `json:"groups"`
}

// Preview is the read-only rendering shown before the user confirms.
type Preview struct {
	Sections []Section `json:"sections"`
}

var specialCaseLabels = map[string]string{
	form.SpecialCaseOver50:  "本業の売上高が50超",
	form.SpecialCaseUnder50: "本業の売上高が50以下",
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func percent(v string) string {
	return v + "%"
}

// BuildPreview turns a form into labelled sections. Category ids are shown
// by their taxonomy names and amounts as yen.
func BuildPreview(s *form.FormState, tax *taxonomy.Taxonomy) *Preview {
	p := &Preview{}
	p.Sections = append(p.Sections, basicSection(s), applicationSection(s))
	p.Sections = append(p.Sections, Section{
		Title:  "本社情報",
		Groups: companyGroups(&s.MainCompany, tax),
	})

	if s.HasSubsidiaries() && len(s.Subsidiaries) > 0 {
		sec := Section{Title: "子会社情報"}
		for i := range s.Subsidiaries {
			for _, g := range companyGroups(&s.Subsidiaries[i], tax) {
				g.Title = fmt.Sprintf("子会社 %d %s", i+1, g.Title)
				sec.Groups = append(sec.Groups, g)
			}
		}
		p.Sections = append(p.Sections, sec)
	}

	p.Sections = append(p.Sections, inheritanceSection(s), paymentSection(s))
	return p
}

func basicSection(s *form.FormState) Section {
	items := []Item{
		{"登録日", s.RegistrationDate},
		{"法人名", s.LegalName},
		{"カタカナ名", s.KatakanaName},
		{"担当者名", strings.TrimSpace(s.ContactLastName + " " + s.ContactFirstName)},
		{"担当者名（カタカナ）", strings.TrimSpace(s.ContactLastNameKana + " " + s.ContactFirstNameKana)},
		{"役職", s.Position},
		{"メールアドレス", s.Email},
		{"電話番号", s.Phone},
		{"住所", s.Address},
		{"郵便番号", s.PostalCode},
		{"レポート受信方法", s.ReportReceiving},
		{"レポート送付先住所", s.ReceiverAddress},
	}
	if s.ReportReceiving == form.DeliveryViaReferrer {
		items = append(items,
			Item{"紹介者名", s.ReferrerName},
			Item{"紹介者会社名", s.ReferrerCompanyName},
			Item{"紹介者メールアドレス", s.ReferrerEmail},
			Item{"紹介者住所", s.ReferrerAddress},
		)
	}
	return Section{Title: "基本情報", Groups: []Group{{Items: items}}}
}

func applicationSection(s *form.FormState) Section {
	items := []Item{{"申請種別", s.ApplicationType}}
	if s.HasSubsidiaries() {
		items = append(items, Item{"子会社数", s.NumberOfSubsidiaries})
	}
	return Section{Title: "申請情報", Groups: []Group{{Items: items}}}
}

func tripleItems(t form.CategoryTriple, tax *taxonomy.Taxonomy, prefix string) []Item {
	var items []Item
	for i, key := range []string{t.Category1, t.Category2, t.Category3} {
		if key == "" {
			continue
		}
		items = append(items, Item{fmt.Sprintf("%s業種カテゴリー%d", prefix, i+1), tax.Label(key)})
	}
	return items
}

func companyGroups(c *form.CompanyEntity, tax *taxonomy.Taxonomy) []Group {
	ind := &c.Industry
	industry := tripleItems(ind.CategoryTriple, tax, "")
	label := specialCaseLabels[ind.SpecialCase]
	if label == "" {
		label = ind.SpecialCase
	}
	industry = append(industry, Item{"業種区分特例", label})

	if ind.SpecialCase == form.SpecialCaseUnder50 {
		industry = append(industry,
			Item{"主たる事業の売上", percent(ind.RevenuePercentage1)},
			Item{"2位の売上", percent(ind.RevenuePercentage2)},
		)
		industry = append(industry, tripleItems(ind.SecondSource, tax, "2位の")...)
		if ind.RevenuePercentage3 != "" {
			industry = append(industry, Item{"3位の売上", percent(ind.RevenuePercentage3)})
			industry = append(industry, tripleItems(ind.ThirdSource, tax, "3位の")...)
		}
	}

	return []Group{
		{Title: "業種情報", Items: industry},
		{Title: "財務情報", Items: []Item{
			{"利益", form.FormatCurrency(c.Financial.Profit)},
			{"配当", form.FormatCurrency(c.Financial.Dividends)},
		}},
	}
}

func inheritanceSection(s *form.FormState) Section {
	heirs := []Item{{"配偶者の有無", s.MaritalStatus}}
	switch s.MaritalStatus {
	case form.MaritalStatusMarried:
		heirs = append(heirs,
			Item{"現在の配偶者との間のお子様の人数", orZero(s.NumberOfChildrenWithSpouse)},
			Item{"上記以外のお子様の人数", orZero(s.NumberOfOtherChildren)},
		)
	case form.MaritalStatusSingle:
		heirs = append(heirs, Item{"お子様の人数", orZero(s.NumberOfChildren)})
	}
	if s.ChildCount() == 0 {
		heirs = append(heirs,
			Item{"ご存命のご両親", orZero(s.NumberOfLivingParents)},
			Item{"ご存命のご兄弟", orZero(s.NumberOfLivingSiblings)},
		)
	}

	groups := []Group{
		{Title: "法定相続人", Items: heirs},
		{Title: "オーナーの財産", Items: []Item{
			{"オーナー氏名", s.OwnerName},
			{"現預金", form.FormatCurrency(s.CashAndDeposits)},
			{"退職金（支給予定額）", form.FormatCurrency(s.RetirementBenefits)},
			{"不動産", form.FormatCurrency(s.RealEstate)},
			{"有価証券（自社株以外）", form.FormatCurrency(s.Securities)},
			{"生命保険等の額", form.FormatCurrency(s.AmountOfLifeInsurance)},
			{"その他財産（貸付金等）", form.FormatCurrency(s.OtherAssets)},
			{"債務", form.FormatCurrency(s.Debts)},
		}},
	}
	if s.IncludeSpouseAssets == form.IncludeSpouseAssetsYes {
		groups = append(groups, Group{Title: "配偶者の財産", Items: []Item{
			{"配偶者氏名", s.SpouseName},
			{"現預金", form.FormatCurrency(s.SpouseCashAndDeposits)},
			{"退職金（支給予定額）", form.FormatCurrency(s.SpouseRetirementBenefits)},
			{"不動産", form.FormatCurrency(s.SpouseRealEstate)},
			{"有価証券（自社株以外）", form.FormatCurrency(s.SpouseSecurities)},
			{"生命保険等の額", form.FormatCurrency(s.SpouseAmountOfLifeInsurance)},
			{"その他財産（貸付金等）", form.FormatCurrency(s.SpouseOtherAssets)},
			{"債務", form.FormatCurrency(s.SpouseDebts)},
		}})
	}
	groups = append(groups, Group{Title: "退職金", Items: []Item{
		{"現在の月額役員報酬", form.FormatCurrency(s.CurrentSalary)},
		{"取締役勤続年数", s.NumberOfYears},
	}})
	return Section{Title: "相続情報", Groups: groups}
}

func paymentSection(s *form.FormState) Section {
	items := []Item{{"金額", form.FormatYen(s.Price)}}
	if s.Voucher != "" {
		items = append(items, Item{"クーポンコード", s.Voucher})
	}
	return Section{Title: "支払い情報", Groups: []Group{{Items: items}}}
}

// Find returns the first item with label in the titled section.
func (p *Preview) Find(section, label string) (string, bool) {
	for _, sec := range p.Sections {
		if sec.Title != section {
			continue
		}
		for _, g := range sec.Groups {
			for _, it := range g.Items {
				if it.Label == label {
					return it.Value, true
				}
			}
		}
	}
	return "", false
}

// Text renders the preview as indented plain text.
func (p *Preview) Text() string {
	var b strings.Builder
	for i, sec := range p.Sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "■ %s\n", sec.Title)
		for _, g := range sec.Groups {
			indent := "  "
			if g.Title != "" {
				fmt.Fprintf(&b, "  [%s]\n", g.Title)
				indent = "    "
			}
			for _, it := range g.Items {
				fmt.Fprintf(&b, "%s%s: %s\n", indent, it.Label, it.Value)
			}
		}
	}
	return b.String()
}
