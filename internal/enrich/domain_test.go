package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://www.lala.com.mx/contacto", "lala.com.mx"},
		{"http://Alpura.com", "alpura.com"},
		{"www.bachoco.com.mx", "bachoco.com.mx"},
		{"sukarne.com", "sukarne.com"},
		{"Grupo LALA", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainFromURL(tt.in), tt.in)
	}
}

func TestGuessDomains(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"grupolala.com",
		"lala.com.mx",
		"grupolala.com.mx",
		"lala.com",
	}, GuessDomains("Grupo LALA S.A.B. de C.V."))

	assert.Equal(t, []string{
		"lacteos.com.mx",
		"lacteosmonterrey.com.mx",
		"grupolacteos.com.mx",
		"lacteos.com",
		"lacteosmonterrey.com",
		"grupolacteos.com",
	}, GuessDomains("Lácteos Monterrey"))

	assert.Nil(t, GuessDomains("Grupo SA de CV"))
}

func TestCompanySlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cremeria-covadonga", CompanySlug("Cremería Covadonga"))
	assert.Equal(t, "grupo-lala-s-a-b-de-c-v", CompanySlug("Grupo LALA, S.A.B. de C.V."))
	assert.Equal(t, "", CompanySlug("--"))
}
