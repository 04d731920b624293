package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one company with the deterministic rubric",
	Long:  "Applies the qualification rubric to a company described by flags. Nothing is searched, enriched, or saved.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := scoreCandidateFromFlags(cmd)
		if c.Company == "" {
			return eris.New("--company is required")
		}

		res := scorer.Score(c, nil)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		formatScore(os.Stdout, c, res)
		return nil
	},
}

func scoreCandidateFromFlags(cmd *cobra.Command) model.Candidate {
	f := cmd.Flags()
	company, _ := f.GetString("company")
	industry, _ := f.GetString("industry")
	location, _ := f.GetString("location")
	size, _ := f.GetString("size")
	email, _ := f.GetString("email")
	notes, _ := f.GetString("notes")
	return model.Candidate{
		Company:     company,
		Industry:    industry,
		Location:    location,
		CompanySize: size,
		Email:       email,
		Notes:       notes,
		Source:      "manual",
	}
}

// formatScore writes the rubric breakdown of one candidate to out.
func formatScore(out io.Writer, c model.Candidate, res scorer.Result) {
	b := res.Breakdown
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Company:\t%s\n", c.Company)
	_, _ = fmt.Fprintf(w, "Score:\t%d (%s)\n", res.Score, res.Category)
	_, _ = fmt.Fprintf(w, "  Industry:\t%d\n", b.Demographic.Industry)
	_, _ = fmt.Fprintf(w, "  Company size:\t%d\n", b.Demographic.CompanySize)
	_, _ = fmt.Fprintf(w, "  Location:\t%d\n", b.Demographic.Location)
	_, _ = fmt.Fprintf(w, "  Job title:\t%d\n", b.Demographic.JobTitle)
	_, _ = fmt.Fprintf(w, "  Equipment brands:\t%d\n", b.Intent.EquipmentBrands)
	_, _ = fmt.Fprintf(w, "  Spare-parts need:\t%d\n", b.Intent.RefaccionesNeed)
	_ = w.Flush()
	for _, r := range res.Reasons {
		_, _ = fmt.Fprintf(out, "- %s\n", r)
	}
}

func init() {
	f := scoreCmd.Flags()
	f.String("company", "", "company name")
	f.String("industry", "", "industry or activity description")
	f.String("location", "", "city, state, or country")
	f.String("size", "", "company size (e.g. 51-250)")
	f.String("email", "", "contact email")
	f.String("notes", "", "free text searched for equipment brands and spare-part needs")
	f.Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(scoreCmd)
}
