package catalog

// Brand is a refrigeration equipment manufacturer.
type Brand struct {
	ID      string
	Label   string
	Aliases []string
}

// Brands lists the equipment brands the distributor sells parts for. Only
// Frick and Danfoss contribute to the score.
var Brands = []Brand{
	{ID: "frick", Label: "Frick / York-Frick", Aliases: []string{"frick", "york-frick", "york frick", "yorkfrick"}},
	{ID: "danfoss", Label: "Danfoss", Aliases: []string{"danfoss"}},
	{ID: "mycom", Label: "MYCOM", Aliases: []string{"mycom", "mayekawa"}},
	{ID: "bitzer", Label: "Bitzer", Aliases: []string{"bitzer"}},
	{ID: "carrier", Label: "Carrier", Aliases: []string{"carrier"}},
	{ID: "copeland", Label: "Copeland", Aliases: []string{"copeland", "emerson copeland"}},
}

// BrandByID returns the brand with the given id.
func BrandByID(id string) Brand {
	for _, b := range Brands {
		if b.ID == id {
			return b
		}
	}
	return Brand{ID: id}
}

// RoleKeywords mark a relevant decision-maker in a contact name, email, or
// title.
var RoleKeywords = []string{
	"mantenimiento", "maintenance", "compras", "purchasing", "procurement",
	"planta", "plant", "operaciones", "operations", "ingeniería", "engineering",
	"técnico", "technical", "gerente", "manager", "director",
}

// ContactTitleKeywords mark a relevant enriched contact title.
var ContactTitleKeywords = []string{
	"mantenimiento", "maintenance", "compras", "purchasing", "operaciones",
	"operations", "planta", "plant", "gerente", "manager", "director", "jefe",
}

// NeedKeywords signal an active need for refrigeration spare parts.
var NeedKeywords = []string{
	"refacciones", "repuestos", "mantenimiento", "reparación", "reparacion",
	"falla", "compresor", "evaporador", "condensador", "spare parts",
	"maintenance", "repair",
}

// TargetTitles are the decision-maker titles requested from people-search
// providers.
var TargetTitles = []string{
	"Gerente de Mantenimiento",
	"Jefe de Mantenimiento",
	"Director de Operaciones",
	"Gerente de Compras",
	"Jefe de Compras",
	"Ingeniero de Planta",
	"Director de Planta",
	"Gerente de Operaciones",
	"Supervisor de Mantenimiento",
	"Maintenance Manager",
	"Operations Manager",
	"Purchasing Manager",
	"Plant Manager",
	"Plant Engineer",
}
