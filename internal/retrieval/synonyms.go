package retrieval

import "strings"

// Concept is a canonical term and the variants that imply it.
type Concept struct {
	Label    string
	Variants []string
}

// Synonyms is an ordered concept table.
type Synonyms []Concept

func DefaultSynonyms() Synonyms {
	return Synonyms{
		{"營收", []string{"收入", "營業收入", "銷售收入", "revenue", "sales"}},
		{"獲利", []string{"盈利", "利潤", "淨利", "profit", "earnings"}},
		{"成長", []string{"增長", "增加", "growth", "increase"}},
		{"財務結構", []string{"資本結構", "financial structure"}},
		{"現金流", []string{"現金流量", "cash flow"}},
		{"投資", []string{"investment", "資本支出"}},
		{"風險", []string{"risk", "不確定性"}},
	}
}

// Expand appends the label of every concept one of whose variants occurs
// in text, once per concept. Matching ignores case.
func (s Synonyms) Expand(text string) string {
	lower := strings.ToLower(text)
	var sb strings.Builder
	sb.WriteString(text)
	for _, c := range s {
		for _, v := range c.Variants {
			if v != "" && strings.Contains(lower, strings.ToLower(v)) {
				sb.WriteByte(' ')
				sb.WriteString(c.Label)
				break
			}
		}
	}
	return sb.String()
}
