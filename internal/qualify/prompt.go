package qualify

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-prospector/internal/model"
)

const systemPrompt = `Eres un experto en calificación de leads para Frío Ingeniería, una empresa mexicana que vende refacciones de equipos de refrigeración industrial (compresores, evaporadores, condensadores) de marcas como FRICK, MYCOM, Danfoss y Parker.

Tu trabajo es calificar leads según su potencial como clientes.

INDUSTRIAS OBJETIVO (máxima prioridad):
- Lácteos (leche, quesos, yogurt)
- Cárnicos (rastros, procesadoras de carne)
- Alimentos procesados
- Bebidas (cervecerías, refrescos)
- Farmacéuticos
- Almacenes frigoríficos y cadena de frío
- Plantas de hielo

UBICACIONES OBJETIVO:
- México (máxima prioridad)
- LATAM (Colombia, Perú, Chile, Argentina)

SEÑALES DE COMPRA:
- Mencionan equipos Frick, MYCOM, York o Danfoss
- Necesitan refacciones o mantenimiento
- Operan equipos de refrigeración industrial
- Tamaño mediano (50-500 empleados) es ideal

TÍTULOS DE CONTACTO RELEVANTES:
- Gerente o Jefe de Mantenimiento
- Gerente de Compras
- Gerente de Planta u Operaciones
- Director de Ingeniería

Responde SIEMPRE únicamente con JSON válido, sin texto adicional.`

const batchSystemPrompt = systemPrompt + `

Calificarás varios leads a la vez. Responde con un arreglo JSON.`

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func singlePrompt(c model.Candidate, contacts []model.Contact) string {
	var b strings.Builder
	b.WriteString("Califica el siguiente lead para Frío Ingeniería:\n\nDATOS DEL LEAD:\n")
	fmt.Fprintf(&b, "- Nombre/Contacto: %s\n", orDefault(c.Name, "No disponible"))
	fmt.Fprintf(&b, "- Empresa: %s\n", orDefault(c.Company, "No disponible"))
	fmt.Fprintf(&b, "- Industria: %s\n", orDefault(c.Industry, "No especificada"))
	fmt.Fprintf(&b, "- Ubicación: %s\n", orDefault(c.Location, "No especificada"))
	fmt.Fprintf(&b, "- Tamaño: %s\n", orDefault(c.CompanySize, "No especificado"))
	fmt.Fprintf(&b, "- Email: %s\n", orDefault(c.Email, "No disponible"))
	fmt.Fprintf(&b, "- Website: %s\n", orDefault(c.Website, "No disponible"))
	fmt.Fprintf(&b, "- Fuente: %s\n", orDefault(c.Source, "No especificada"))
	if c.Notes != "" {
		fmt.Fprintf(&b, "- Notas: %s\n", c.Notes)
	}
	if len(contacts) > 0 {
		names := make([]string, 0, len(contacts))
		for _, ct := range contacts {
			names = append(names, fmt.Sprintf("%s (%s)", ct.Name, ct.Title))
		}
		fmt.Fprintf(&b, "- Contactos: %s\n", strings.Join(names, ", "))
	}
	b.WriteString(`
Responde en este formato JSON exacto:
{
  "score": <número 0-100>,
  "category": "<HOT|WARM|COLD|DISCARD>",
  "reasoning": "<explicación breve del score>",
  "scoreBreakdown": {
    "demographic": {"industry": <0-15>, "companySize": <0-10>, "location": <0-10>, "jobTitle": <0-5>},
    "intent": {"equipmentBrands": <0-20>, "refaccionesNeed": <0-10>},
    "engagement": {"purchaseHistory": 0, "previousInteractions": <0-8>}
  },
  "recommendations": ["<acción sugerida 1>", "<acción sugerida 2>"]
}`)
	return b.String()
}

func batchPrompt(items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Califica los siguientes %d leads para Frío Ingeniería:\n", len(items))
	for i, it := range items {
		c := it.Candidate
		fmt.Fprintf(&b, "\nLEAD %d:\n", i)
		fmt.Fprintf(&b, "- Empresa: %s\n", orDefault(c.DisplayName(), "No disponible"))
		fmt.Fprintf(&b, "- Industria: %s\n", orDefault(c.Industry, "No especificada"))
		fmt.Fprintf(&b, "- Ubicación: %s\n", orDefault(c.Location, "No especificada"))
		fmt.Fprintf(&b, "- Tamaño: %s\n", orDefault(c.CompanySize, "No especificado"))
		fmt.Fprintf(&b, "- Fuente: %s\n", orDefault(c.Source, "No especificada"))
		if c.Notes != "" {
			fmt.Fprintf(&b, "- Notas: %s\n", c.Notes)
		}
		if len(it.Contacts) > 0 {
			fmt.Fprintf(&b, "- Contactos: %d identificados\n", len(it.Contacts))
		}
	}
	b.WriteString(`
Responde con un arreglo JSON con un elemento por lead, usando el número de LEAD como leadIndex:
[
  {"leadIndex": 0, "score": <número 0-100>, "category": "<HOT|WARM|COLD|DISCARD>", "reasoning": "<explicación breve>"}
]`)
	return b.String()
}
