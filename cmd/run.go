package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
)

var (
	runIndustries []string
	runRegions    []string
	runSources    []string
	runMaxLeads   int
	runMinScore   int
	runDryRun     bool
	runScheduledF bool
	runNotify     bool
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one prospection",
	Long:  "Searches the configured sources, qualifies and enriches candidates, and stores leads that clear the minimum score. Flags override the prospect defaults from config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initProspector(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		var run *model.Run
		if runScheduledF {
			run, err = runScheduled(ctx, env.Orchestrator, env.Notifier, cfg.Schedule.RunConfig(), cfg.Schedule.LockFile)
		} else {
			run, err = env.Orchestrator.Run(ctx, runFlagsConfig(cmd))
			if run != nil && runNotify {
				notifyHot(ctx, env.Notifier, run)
			}
		}
		env.Qualifier.LogUsage()
		if run == nil {
			return err
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(runResponseFor(run)); encErr != nil {
				zap.L().Warn("failed to encode run", zap.Error(encErr))
			}
		} else {
			formatRunResult(os.Stdout, run)
		}
		return err
	},
}

// runFlagsConfig overlays explicitly set flags on the prospect defaults.
func runFlagsConfig(cmd *cobra.Command) model.RunConfig {
	rc := cfg.Prospect.RunConfig()
	flags := cmd.Flags()
	if flags.Changed("industries") {
		rc.Industries = runIndustries
	}
	if flags.Changed("regions") {
		rc.Regions = runRegions
	}
	if flags.Changed("sources") {
		rc.Sources = runSources
	}
	if flags.Changed("max-leads") {
		rc.MaxLeads = runMaxLeads
	}
	if flags.Changed("min-score") {
		rc.MinScore = runMinScore
	}
	rc.DryRun = runDryRun
	return rc.Normalize()
}

// formatRunResult writes a human-readable summary of a finished run.
func formatRunResult(w io.Writer, run *model.Run) {
	r := run.Results
	fmt.Fprintf(w, "Run:        %s\n", run.ID)
	fmt.Fprintf(w, "Status:     %s\n", run.Status)
	if r.DryRun {
		fmt.Fprintln(w, "Mode:       dry run (nothing saved)")
	}
	fmt.Fprintf(w, "Processed:  %d\n", r.LeadsProcessed)
	fmt.Fprintf(w, "Created:    %d\n", r.LeadsCreated)
	fmt.Fprintf(w, "Updated:    %d\n", r.LeadsUpdated)

	cats := make([]string, 0, len(r.LeadsByCategory))
	for _, c := range model.Categories {
		cats = append(cats, fmt.Sprintf("%s=%d", c, r.LeadsByCategory[c]))
	}
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(cats, " "))

	if len(r.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, s := range r.Sources {
			fmt.Fprintf(w, "  %-12s %3d  (%s)\n", s.Name, s.LeadsFound, s.Path)
		}
	}
	if len(r.HotLeads) > 0 {
		hot := append([]model.LeadSummary(nil), r.HotLeads...)
		sort.SliceStable(hot, func(i, j int) bool { return hot[i].Score > hot[j].Score })
		fmt.Fprintln(w, "HOT leads:")
		for _, l := range hot {
			fmt.Fprintf(w, "  %3d  %s  %s\n", l.Score, l.Company, l.Location)
		}
	}
	if r.TokenUsage != nil {
		fmt.Fprintf(w, "LLM:        %d calls, %d in / %d out tokens, $%.4f\n",
			r.TokenUsage.Calls, r.TokenUsage.InputTokens, r.TokenUsage.OutputTokens, r.TokenUsage.CostUSD)
	}
	if r.QualificationFallbacks > 0 {
		fmt.Fprintf(w, "Fallbacks:  %d scored deterministically\n", r.QualificationFallbacks)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", run.Error)
	}
}

func init() {
	runCmd.Flags().StringSliceVar(&runIndustries, "industries", nil, "industry ids to target (default from config)")
	runCmd.Flags().StringSliceVar(&runRegions, "regions", nil, "region ids to target (default from config)")
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "sources to search: siem, canacintra, google_maps, all")
	runCmd.Flags().IntVar(&runMaxLeads, "max-leads", 0, "maximum candidates across all sources")
	runCmd.Flags().IntVar(&runMinScore, "min-score", 0, "minimum score to enrich and store a lead")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "qualify and enrich without saving leads")
	runCmd.Flags().BoolVar(&runScheduledF, "scheduled", false, "use the schedule configuration, lock against overlap, and notify on HOT leads")
	runCmd.Flags().BoolVar(&runNotify, "notify", false, "send the run summary when HOT leads are found")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run as JSON")
	rootCmd.AddCommand(runCmd)
}
