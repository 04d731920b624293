//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-prospector/internal/config"
	"github.com/sells-group/lead-prospector/internal/model"
)

func sampleRun() *model.Run {
	started := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	completed := started.Add(95 * time.Second)
	res := model.NewRunResults()
	res.LeadsProcessed = 12
	res.LeadsCreated = 4
	res.LeadsUpdated = 1
	res.LeadsByCategory[model.CategoryHot] = 2
	res.LeadsByCategory[model.CategoryWarm] = 3
	res.LeadsByCategory[model.CategoryDiscard] = 7
	res.Sources = []model.SourceCount{{Name: "siem", LeadsFound: 8, Path: "live"}, {Name: "google_maps", LeadsFound: 4, Path: "curated"}}
	res.HotLeads = []model.LeadSummary{
		{Company: "Frigorífico Sur", Score: 74, Location: "Guadalajara, Jalisco", Source: "siem"},
		{Company: "Lácteos del Norte", Score: 88, Location: "Monterrey, Nuevo León", Source: "siem"},
	}
	res.Errors = []string{"Search error: canacintra: directory file not configured"}
	res.QualificationFallbacks = 1
	res.TokenUsage = &model.TokenUsage{InputTokens: 1200, OutputTokens: 300, Calls: 2, CostUSD: 0.0081}
	return &model.Run{
		ID:             "0f8e2c1a-1111-2222-3333-444455556666",
		AgentType:      model.AgentTypeProspector,
		Status:         model.RunStatusCompleted,
		LeadsFound:     4,
		LeadsQualified: 5,
		Results:        res,
		StartedAt:      started,
		CompletedAt:    &completed,
		CreatedAt:      started,
	}
}

func TestFormatRunResult(t *testing.T) {
	var buf bytes.Buffer
	formatRunResult(&buf, sampleRun())
	out := buf.String()

	assert.Contains(t, out, "0f8e2c1a-1111-2222-3333-444455556666")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Processed:  12")
	assert.Contains(t, out, "HOT=2 WARM=3 COLD=0 DISCARD=7")
	assert.Contains(t, out, "google_maps")
	assert.Contains(t, out, "(curated)")
	assert.Contains(t, out, "2 calls, 1200 in / 300 out tokens")
	assert.Contains(t, out, "Fallbacks:  1")
	assert.Contains(t, out, "Search error: canacintra")
	assert.NotContains(t, out, "dry run")

	// HOT leads are listed highest score first.
	norte := bytes.Index(buf.Bytes(), []byte("Lácteos del Norte"))
	sur := bytes.Index(buf.Bytes(), []byte("Frigorífico Sur"))
	require.True(t, norte > 0 && sur > 0)
	assert.Less(t, norte, sur)
}

func TestFormatRunResult_DryRunFailed(t *testing.T) {
	run := sampleRun()
	run.Status = model.RunStatusFailed
	run.Error = "prospect: run panicked: boom"
	run.Results.DryRun = true
	run.Results.TokenUsage = nil

	var buf bytes.Buffer
	formatRunResult(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "dry run (nothing saved)")
	assert.Contains(t, out, "Error:      prospect: run panicked: boom")
	assert.NotContains(t, out, "LLM:")
}

func TestRunFlagsConfig(t *testing.T) {
	prev := cfg
	cfg = &config.Config{Prospect: config.ProspectConfig{
		Industries: []string{"dairy"},
		Regions:    []string{"mexico"},
		MaxLeads:   30,
		MinScore:   45,
	}}
	t.Cleanup(func() {
		cfg = prev
		for _, name := range []string{"max-leads", "sources", "dry-run"} {
			runCmd.Flags().Lookup(name).Changed = false
		}
		runMaxLeads, runSources, runDryRun = 0, nil, false
	})

	rc := runFlagsConfig(runCmd)
	assert.Equal(t, []string{"dairy"}, rc.Industries)
	assert.Equal(t, 30, rc.MaxLeads)
	assert.Equal(t, 45, rc.MinScore)
	assert.Equal(t, []string{model.SourceAll}, rc.Sources)
	assert.False(t, rc.DryRun)

	require.NoError(t, runCmd.Flags().Set("max-leads", "7"))
	require.NoError(t, runCmd.Flags().Set("sources", "SIEM,google_maps"))
	require.NoError(t, runCmd.Flags().Set("dry-run", "true"))

	rc = runFlagsConfig(runCmd)
	assert.Equal(t, 7, rc.MaxLeads)
	assert.Equal(t, []string{"siem", "google_maps"}, rc.Sources)
	assert.Equal(t, 45, rc.MinScore)
	assert.True(t, rc.DryRun)
}

func TestFormatRunsList(t *testing.T) {
	run := sampleRun()
	running := &model.Run{
		ID:        "def12345-6789-0000-0000-000000000000",
		Status:    model.RunStatusRunning,
		Results:   model.NewRunResults(),
		StartedAt: run.StartedAt.Add(time.Hour),
	}

	var buf bytes.Buffer
	formatRunsList(&buf, []model.Run{*run, *running})
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "QUALIFIED")
	assert.Contains(t, out, "0f8e2c1a")
	assert.NotContains(t, out, "0f8e2c1a-1111")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "1m35s")
	assert.Contains(t, out, "def12345")
	assert.Contains(t, out, "running")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
