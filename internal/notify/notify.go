// Package notify sends run summaries to the sales team.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-prospector/internal/model"
	"github.com/sells-group/lead-prospector/internal/provider"
)

const (
	defaultBaseURL = "https://api.resend.com"
	providerName   = "resend"
)

// Notifier delivers a run summary.
type Notifier interface {
	NotifyRun(ctx context.Context, run *model.Run) error
}

// Config configures the Resend notifier.
type Config struct {
	ResendKey  string   `yaml:"resend_key" mapstructure:"resend_key"`
	From       string   `yaml:"from" mapstructure:"from"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
}

// Noop discards notifications.
type Noop struct{}

// NotifyRun implements Notifier.
func (Noop) NotifyRun(context.Context, *model.Run) error { return nil }

// New returns a Resend notifier, or Noop when the key or recipients are
// missing.
func New(cfg Config) Notifier {
	if cfg.ResendKey == "" || len(cfg.Recipients) == 0 {
		zap.L().Debug("notify: resend not configured, notifications disabled")
		return Noop{}
	}
	return NewResend(cfg, nil)
}

// ResendNotifier posts an HTML summary email through the Resend API.
type ResendNotifier struct {
	cfg    Config
	client *http.Client
}

// NewResend creates a ResendNotifier. A nil client uses a 10 second timeout.
func NewResend(cfg Config, client *http.Client) *ResendNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.From == "" {
		cfg.From = "Prospector <prospector@frioingenieria.mx>"
	}
	return &ResendNotifier{cfg: cfg, client: client}
}

type email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NotifyRun implements Notifier.
func (n *ResendNotifier) NotifyRun(ctx context.Context, run *model.Run) error {
	if run == nil {
		return eris.New("notify: nil run")
	}
	body, err := Render(run)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(email{
		From:    n.cfg.From,
		To:      n.cfg.Recipients,
		Subject: Subject(run),
		HTML:    body,
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal email")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.ResendKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return provider.Network(providerName, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return provider.Classify(providerName, resp.StatusCode, msg)
	}
	zap.L().Info("notify: run summary sent",
		zap.String("run_id", run.ID),
		zap.Int("recipients", len(n.cfg.Recipients)),
	)
	return nil
}

// Subject returns the email subject for a run.
func Subject(run *model.Run) string {
	hot := run.Results.LeadsByCategory[model.CategoryHot]
	return fmt.Sprintf("Prospección: %d leads HOT, %d calificados (%s)", hot, run.Results.Qualified(), shortID(run.ID))
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<h2>Resumen de prospección</h2>
<p>Corrida <code>{{.ID}}</code> ({{.Status}})</p>
<table>
<tr><td>Procesados</td><td>{{.Results.LeadsProcessed}}</td></tr>
<tr><td>Creados</td><td>{{.Results.LeadsCreated}}</td></tr>
<tr><td>Actualizados</td><td>{{.Results.LeadsUpdated}}</td></tr>
<tr><td>HOT</td><td>{{.Hot}}</td></tr>
<tr><td>WARM</td><td>{{.Warm}}</td></tr>
<tr><td>COLD</td><td>{{.Cold}}</td></tr>
</table>
{{- if .Results.HotLeads}}
<h3>Leads HOT</h3>
<ul>
{{- range .Results.HotLeads}}
<li><strong>{{.Company}}</strong> ({{.Score}}) {{.Location}} · {{.Source}}{{if .Email}} · {{.Email}}{{end}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Results.Errors}}
<p>{{len .Results.Errors}} errores durante la corrida.</p>
{{- end}}
`))

// Render renders the HTML body of the summary email.
func Render(run *model.Run) (string, error) {
	view := struct {
		*model.Run
		Hot, Warm, Cold int
	}{
		Run:  run,
		Hot:  run.Results.LeadsByCategory[model.CategoryHot],
		Warm: run.Results.LeadsByCategory[model.CategoryWarm],
		Cold: run.Results.LeadsByCategory[model.CategoryCold],
	}
	var b strings.Builder
	if err := summaryTmpl.Execute(&b, view); err != nil {
		return "", eris.Wrap(err, "notify: render summary")
	}
	return b.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
