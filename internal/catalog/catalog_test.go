package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesIndustry(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchesIndustry("Lácteos del Norte", "dairy"))
	assert.True(t, MatchesIndustry("dairy", "dairy"))
	assert.True(t, MatchesIndustry("Productos LACTEOS", "dairy"))
	assert.False(t, MatchesIndustry("Cervecería Querétaro", "dairy"))
	assert.True(t, MatchesIndustry("Cervecería Querétaro", "beverages"))
	assert.True(t, MatchesIndustry("custom_vertical", "custom_vertical"))
}

func TestMatchesAnyIndustry(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchesAnyIndustry("anything", nil))
	assert.True(t, MatchesAnyIndustry("frigorífico", []string{"dairy", "meat"}))
	assert.False(t, MatchesAnyIndustry("software", []string{"dairy", "meat"}))
}

func TestMatchesTargetIndustry(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchesTargetIndustry("planta de hielo"))
	assert.False(t, MatchesTargetIndustry("consultoría legal"))
}

func TestCountryOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		location string
		want     string
	}{
		{"Monterrey, Nuevo León", "MX"},
		{"Santiago de Querétaro, Qro.", "MX"},
		{"Bogotá, Colombia", "CO"},
		{"Lima, Perú", "PE"},
		{"Santiago, Chile", "CL"},
		{"Ciudad de Panamá", "PA"},
	}
	for _, tt := range tests {
		got, ok := CountryOf(tt.location)
		assert.True(t, ok, tt.location)
		assert.Equal(t, tt.want, got, tt.location)
	}

	_, ok := CountryOf("Madrid, España")
	assert.False(t, ok)
}

func TestInRegions(t *testing.T) {
	t.Parallel()

	assert.True(t, InRegions("Guadalajara, Jalisco", []string{"mexico"}))
	assert.False(t, InRegions("Guadalajara, Jalisco", []string{"south_america"}))
	assert.True(t, InRegions("Medellín", []string{"mexico", "south_america"}))
	assert.True(t, InRegions("nowhere", nil))
	assert.False(t, InRegions("nowhere", []string{"mexico"}))
}

func TestCountriesFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"MX", "DO", "PR", "CU"}, CountriesFor([]string{"mexico", "caribbean", "unknown"}))
}

func TestIndustryByID(t *testing.T) {
	t.Parallel()

	ind, ok := IndustryByID("dairy")
	assert.True(t, ok)
	assert.Equal(t, "3115", ind.SCIAN)
	_, ok = IndustryByID("nope")
	assert.False(t, ok)
	assert.Len(t, IndustryIDs(), len(Industries))
}

func TestCitiesFor(t *testing.T) {
	t.Parallel()

	cities := CitiesFor([]string{"mexico", "nowhere", "caribbean"}, 3)
	names := make([]string, len(cities))
	for i, c := range cities {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Ciudad de México", "Monterrey", "Guadalajara", "Santo Domingo", "San Juan"}, names)
	assert.Empty(t, CitiesFor(nil, 3))
}
