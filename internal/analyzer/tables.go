package analyzer

// Tables holds the fixed lookup data the analyzer scans page text with.
// Entries are matched as case-insensitive substrings.
type Tables struct {
	// Keywords maps a financial category to its keywords; every
	// occurrence of every keyword counts as one hit.
	Keywords map[string][]string
	// Indicators maps a structure category (currency, unit, totals) to
	// its markers.
	Indicators map[string][]string
	// TableTypes is ordered; on a tie the earlier entry wins.
	TableTypes []TableKeywords
}

type TableKeywords struct {
	Type     TableType
	Keywords []string
}

func DefaultTables() Tables {
	return Tables{
		Keywords: map[string][]string{
			"revenue":    {"營業收入", "營收", "收入", "銷售", "revenue", "sales"},
			"profit":     {"淨利", "獲利", "利潤", "毛利", "營業利益", "net income", "profit", "margin"},
			"assets":     {"資產", "負債", "股東權益", "total assets", "liabilities", "equity"},
			"cash_flow":  {"現金流量", "現金流", "cash flow"},
			"investment": {"投資", "轉投資", "子公司", "持股", "investment"},
		},
		Indicators: map[string][]string{
			"currency": {"$", "新台幣", "元", "usd", "ntd"},
			"unit":     {"千元", "萬", "億", "%", "％"},
			"total":    {"合計", "總計", "小計", "total"},
		},
		TableTypes: []TableKeywords{
			{TableInvestment, []string{"轉投資", "被投資公司", "持股比例", "投資損益", "investment"}},
			{TableIncomeStatement, []string{"營業收入", "營業成本", "營業利益", "本期淨利", "每股盈餘", "income statement"}},
			{TableBalanceSheet, []string{"資產總額", "流動資產", "負債總額", "股東權益", "balance sheet"}},
			{TableCashFlow, []string{"現金流量", "營業活動", "投資活動", "籌資活動", "cash flow"}},
		},
	}
}
