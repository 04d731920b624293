package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/sheet"
	"github.com/sells-group/lead-prospector/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and export stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored leads, highest score first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		leads, err := queryLeads(cmd)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}
		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored leads to an XLSX workbook for the sales team",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")
		leads, err := queryLeads(cmd)
		if err != nil {
			return err
		}
		if err := exportLeads(out, leads); err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.String("path", out), zap.Int("count", len(leads)))
		return nil
	},
}

func queryLeads(cmd *cobra.Command) ([]model.Lead, error) {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	category, _ := cmd.Flags().GetString("category")
	minScore, _ := cmd.Flags().GetInt("min-score")
	limit, _ := cmd.Flags().GetInt("limit")

	cat := model.Category(category)
	if category != "" && !cat.Valid() {
		return nil, eris.Errorf("unknown category %q", category)
	}

	leads, err := st.ListLeads(ctx, store.LeadFilter{
		Category: cat,
		MinScore: minScore,
		Limit:    limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "leads list")
	}
	return leads, nil
}

// formatLeadsList writes a tabular list of leads to out.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tCATEGORY\tCOMPANY\tEMAIL\tLOCATION\tSOURCE")
	_, _ = fmt.Fprintln(w, "-----\t--------\t-------\t-----\t--------\t------")
	for _, l := range leads {
		company := l.Company
		if r := []rune(company); len(r) > 40 {
			company = string(r[:37]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.Score, l.Category, company, l.Email, l.Location, l.Source)
	}
	_ = w.Flush()
}

var leadExportHeader = []string{
	"Empresa", "Contacto", "Correo", "Teléfono", "Puntuación", "Categoría",
	"Industria", "Ubicación", "Sitio web", "Tamaño", "Fuente", "Estado", "Actualizado",
}

// exportLeads writes leads to an XLSX workbook at path.
func exportLeads(path string, leads []model.Lead) error {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, []string{
			l.Company,
			l.Name,
			l.Email,
			l.Phone,
			strconv.Itoa(l.Score),
			string(l.Category),
			l.Industry,
			l.Location,
			l.Website,
			l.CompanySize,
			l.Source,
			string(l.Status),
			l.UpdatedAt.Format("2006-01-02"),
		})
	}
	return sheet.Write(path, "Leads", leadExportHeader, rows)
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().String("category", "", "filter by category (HOT, WARM, COLD)")
		c.Flags().Int("min-score", 0, "minimum score")
		c.Flags().Int("limit", 100, "max number of leads")
	}
	leadsExportCmd.Flags().String("out", "leads.xlsx", "output workbook path")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
