package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanyName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Grupo LALA S.A.B. de C.V.", "Grupo LALA"},
		{"Bachoco, S.A.B. de C.V.", "Bachoco"},
		{"Alpura S.A. de C.V.", "Alpura"},
		{"Frialsa Frigoríficos S.A.P.I. de C.V.", "Frialsa Frigoríficos"},
		{"Carnes del Norte S. de R.L. de C.V.", "Carnes del Norte"},
		{"Leche Gloria S.A.", "Leche Gloria"},
		{"Cold Chain LLC", "Cold Chain"},
		{"Lácteos Mesa", "Lácteos Mesa"},
		{"  Hielo Polar  ", "Hielo Polar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompanyName(tt.in), tt.in)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+52 8183892100", NormalizePhone("81 8389 2100"))
	assert.Equal(t, "+52 5550893700", NormalizePhone("(55) 5089-3700"))
	assert.Equal(t, "+525550893700", NormalizePhone("+52 (55) 5089-3700"))
	assert.Equal(t, "123", NormalizePhone(" 123 "))
}

func TestSizeFromStratum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"0 a 5 personas", "1-10"},
		{"6 a 10 personas", "1-10"},
		{"11 a 30 personas", "25-50"},
		{"31 a 50 personas", "25-50"},
		{"51 a 100 personas", "50-100"},
		{"101 a 250 personas", "100-250"},
		{"251 y más personas", "250-500"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SizeFromStratum(tt.in), tt.in)
	}
}

func TestSizeFromEmployees(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", SizeFromEmployees(0))
	assert.Equal(t, "1-10", SizeFromEmployees(5))
	assert.Equal(t, "10-25", SizeFromEmployees(12))
	assert.Equal(t, "25-50", SizeFromEmployees(30))
	assert.Equal(t, "50-100", SizeFromEmployees(100))
	assert.Equal(t, "100-250", SizeFromEmployees(120))
	assert.Equal(t, "200-500", SizeFromEmployees(400))
	assert.Equal(t, "500-1000", SizeFromEmployees(800))
	assert.Equal(t, "1000+", SizeFromEmployees(2000))
}

func TestSizeFromPlaceTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", SizeFromPlaceTypes([]string{"store"}))
	assert.Equal(t, "", SizeFromPlaceTypes([]string{"point_of_interest"}))
	assert.Equal(t, "10-50", SizeFromPlaceTypes([]string{"food", "point_of_interest", "establishment"}))
	assert.Equal(t, "50-100", SizeFromPlaceTypes([]string{"food", "store", "point_of_interest", "establishment"}))
	assert.Equal(t, "100-500", SizeFromPlaceTypes([]string{"a", "b", "c", "d", "point_of_interest", "establishment"}))
}

func TestJoinNonEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a, b", joinNonEmpty(", ", " a ", "", "  ", "b"))
	assert.Equal(t, "", joinNonEmpty(", "))
}
