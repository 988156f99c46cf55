package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectConfusions(t *testing.T) {
	p := New(DefaultTables())
	tests := []struct {
		in, want string
	}{
		{"1O0", "100"},
		{"12lI5", "12115"},
		{"3,2S6", "3,256"},
		{"Total 1O", "Total 1O"},
		{"Oil 10", "Oil 10"},
		{"營業收人 1,000", "營業收入 1,000"},
		{"Tota1 5B6", "Total 586"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.CorrectConfusions(tt.in), tt.in)
	}
}

func TestReconstructRows(t *testing.T) {
	p := New(DefaultTables())
	in := "營業收入   1,234   5,678\n說明文字沒有數字  只有空白\n| 淨利 |\t100 | 200 |\n第3季"
	want := "營業收入 | 1,234 | 5,678\n說明文字沒有數字  只有空白\n淨利 | 100 | 200\n第3季"
	got := p.ReconstructRows(in)
	assert.Equal(t, want, got)
	assert.Equal(t, got, p.ReconstructRows(got), "second pass must not change rows")
}

func TestReconstructRows_MarkerWithoutSeparators(t *testing.T) {
	p := New(DefaultTables())
	assert.Equal(t, "毛利率 45%", p.ReconstructRows("毛利率 45%"))
}

func TestRepairSpacing(t *testing.T) {
	p := New(DefaultTables())
	tests := []struct {
		in, want string
	}{
		{"1 , 234 , 567", "1,234,567"},
		{"3 . 14", "3.14"},
		{"成長 12 %", "成長 12%"},
		{"NT$ 500", "NT$500"},
		{"$ 1,000", "$1,000"},
		{"500 萬", "500萬"},
		{"營收成長 ，獲利持平 。", "營收成長，獲利持平。"},
		{"１２３，４５６", "123,456"},
		{"５０％", "50%"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"2023 2024", "2023 2024"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.RepairSpacing(tt.in), tt.in)
	}
}

func TestCleanRecognized_Chain(t *testing.T) {
	p := New(DefaultTables())
	got := p.CleanRecognized("營業收人   1,2O4   5 , 678")
	assert.Equal(t, "營業收入 | 1,204 | 5,678", got)
}

func TestCleanText_LeavesGlyphsAlone(t *testing.T) {
	p := New(DefaultTables())
	assert.Equal(t, "1O0 營業收人", p.CleanText("1O0 營業收人"))
}
