package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-prospector/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Qualification QualificationConfig `yaml:"qualification" mapstructure:"qualification"`
	Search        SearchConfig        `yaml:"search" mapstructure:"search"`
	DENUE         DENUEConfig         `yaml:"denue" mapstructure:"denue"`
	Google        GoogleConfig        `yaml:"google" mapstructure:"google"`
	Canacintra    CanacintraConfig    `yaml:"canacintra" mapstructure:"canacintra"`
	Apollo        ApolloConfig        `yaml:"apollo" mapstructure:"apollo"`
	LinkedIn      LinkedInConfig      `yaml:"linkedin" mapstructure:"linkedin"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment" mapstructure:"enrichment"`
	Notify        NotifyConfig        `yaml:"notify" mapstructure:"notify"`
	Prospect      ProspectConfig      `yaml:"prospect" mapstructure:"prospect"`
	Schedule      ScheduleConfig      `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=postgres postgresql pgx sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// CronSecret, when set, must be presented as a bearer token on the
	// scheduled trigger.
	CronSecret          string   `yaml:"cron_secret" mapstructure:"cron_secret"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RunTimeoutMins      int      `yaml:"run_timeout_mins" mapstructure:"run_timeout_mins" validate:"gte=0"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs" validate:"gte=0"`
}

// AnthropicConfig holds language model settings used by qualification.
type AnthropicConfig struct {
	Key           string       `yaml:"key" mapstructure:"key"`
	Model         string       `yaml:"model" mapstructure:"model"`
	MaxTokens     int64        `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`
	Temperature   float64      `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=1"`
	MinIntervalMs int          `yaml:"min_interval_ms" mapstructure:"min_interval_ms" validate:"gte=0"`
	BatchSize     int          `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0,lte=50"`
	Pricing       ModelPricing `yaml:"pricing" mapstructure:"pricing"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input" validate:"gte=0"`
	Output float64 `yaml:"output" mapstructure:"output" validate:"gte=0"`
}

// QualificationConfig selects the scoring strategy.
type QualificationConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=deterministic hybrid llm"`
}

// SearchConfig holds the shared pacing of discovery providers.
type SearchConfig struct {
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms" validate:"gte=0"`
	CacheTTLMins  int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins" validate:"gte=0"`
	DatasetFile   string `yaml:"dataset_file" mapstructure:"dataset_file"`
}

// DENUEConfig holds INEGI DENUE API settings.
type DENUEConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	RadiusM int    `yaml:"radius_m" mapstructure:"radius_m" validate:"gte=0,lte=5000"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CanacintraConfig points at an exported member directory spreadsheet.
type CanacintraConfig struct {
	DirectoryFile string `yaml:"directory_file" mapstructure:"directory_file"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
}

// ApolloConfig holds Apollo.io API settings.
type ApolloConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms" validate:"gte=0"`
	CacheTTLMins  int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins" validate:"gte=0"`
}

// LinkedInConfig holds the LinkedIn MCP gateway settings.
type LinkedInConfig struct {
	GatewayURL    string `yaml:"gateway_url" mapstructure:"gateway_url"`
	Tool          string `yaml:"tool" mapstructure:"tool"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms" validate:"gte=0"`
	CacheTTLMins  int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins" validate:"gte=0"`
}

// EnrichmentConfig configures the contact enrichment chain.
type EnrichmentConfig struct {
	Mode           string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=primary secondary primary_then_secondary"`
	ScrapeWebsites bool   `yaml:"scrape_websites" mapstructure:"scrape_websites"`
	// TimeoutSecs bounds each website fetch.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=0"`
}

// NotifyConfig configures run summary emails.
type NotifyConfig struct {
	ResendKey  string   `yaml:"resend_key" mapstructure:"resend_key"`
	From       string   `yaml:"from" mapstructure:"from"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients" validate:"dive,email"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
}

// ProspectConfig holds the defaults of on-demand runs.
type ProspectConfig struct {
	AgentID    string   `yaml:"agent_id" mapstructure:"agent_id"`
	Industries []string `yaml:"industries" mapstructure:"industries"`
	Regions    []string `yaml:"regions" mapstructure:"regions"`
	Sources    []string `yaml:"sources" mapstructure:"sources"`
	MaxLeads   int      `yaml:"max_leads" mapstructure:"max_leads" validate:"gte=0,lte=500"`
	MinScore   int      `yaml:"min_score" mapstructure:"min_score" validate:"gte=0,lte=100"`
}

// ScheduleConfig holds the fixed configuration of scheduled runs.
type ScheduleConfig struct {
	Industries []string `yaml:"industries" mapstructure:"industries"`
	Regions    []string `yaml:"regions" mapstructure:"regions"`
	Sources    []string `yaml:"sources" mapstructure:"sources"`
	MaxLeads   int      `yaml:"max_leads" mapstructure:"max_leads" validate:"gte=0,lte=500"`
	MinScore   int      `yaml:"min_score" mapstructure:"min_score" validate:"gte=0,lte=100"`
	// LockFile guards against overlapping scheduled runs on one host.
	LockFile string `yaml:"lock_file" mapstructure:"lock_file"`
}

// RunConfig returns the on-demand run defaults.
func (p ProspectConfig) RunConfig() model.RunConfig {
	return model.RunConfig{
		Industries: p.Industries,
		Regions:    p.Regions,
		Sources:    p.Sources,
		MaxLeads:   p.MaxLeads,
		MinScore:   p.MinScore,
	}.Normalize()
}

// RunConfig returns the scheduled run configuration. Unset fields fall
// back to model.ScheduledRunConfig.
func (s ScheduleConfig) RunConfig() model.RunConfig {
	out := model.ScheduledRunConfig()
	if len(s.Industries) > 0 {
		out.Industries = s.Industries
	}
	if len(s.Regions) > 0 {
		out.Regions = s.Regions
	}
	if len(s.Sources) > 0 {
		out.Sources = s.Sources
	}
	if s.MaxLeads > 0 {
		out.MaxLeads = s.MaxLeads
	}
	if s.MinScore > 0 {
		out.MinScore = s.MinScore
	}
	return out.Normalize()
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// Minutes converts a minute setting to a duration.
func Minutes(m int) time.Duration { return time.Duration(m) * time.Minute }

// envOnlyKeys are settings with no default, usually credentials.
var envOnlyKeys = []string{
	"store.database_url",
	"server.cron_secret",
	"anthropic.key",
	"search.dataset_file",
	"denue.token",
	"google.key",
	"canacintra.directory_file",
	"apollo.key",
	"linkedin.gateway_url",
	"linkedin.tool",
	"notify.resend_key",
	"notify.recipients",
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.run_timeout_mins", 15)
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.temperature", 0.3)
	v.SetDefault("anthropic.min_interval_ms", 500)
	v.SetDefault("anthropic.batch_size", 10)
	v.SetDefault("anthropic.pricing.input", 3.00)
	v.SetDefault("anthropic.pricing.output", 15.00)
	v.SetDefault("qualification.mode", "hybrid")
	v.SetDefault("search.min_interval_ms", 200)
	v.SetDefault("search.cache_ttl_mins", 60)
	v.SetDefault("denue.base_url", "https://www.inegi.org.mx/app/api/denue/v1/consulta")
	v.SetDefault("denue.radius_m", 5000)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("canacintra.sheet", "Socios")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/v1")
	v.SetDefault("apollo.min_interval_ms", 500)
	v.SetDefault("apollo.cache_ttl_mins", 60)
	v.SetDefault("linkedin.min_interval_ms", 1000)
	v.SetDefault("linkedin.cache_ttl_mins", 60)
	v.SetDefault("enrichment.mode", "primary_then_secondary")
	v.SetDefault("enrichment.scrape_websites", true)
	v.SetDefault("enrichment.timeout_secs", 15)
	v.SetDefault("notify.base_url", "https://api.resend.com")
	v.SetDefault("notify.from", "Prospector <prospector@frioingenieria.mx>")
	v.SetDefault("prospect.agent_id", "prospector-agent")
	v.SetDefault("prospect.industries", []string{"food_processing", "dairy", "meat", "beverages", "cold_storage"})
	v.SetDefault("prospect.regions", []string{"mexico"})
	v.SetDefault("prospect.sources", []string{"all"})
	v.SetDefault("prospect.max_leads", 20)
	v.SetDefault("prospect.min_score", 40)
	v.SetDefault("schedule.industries", []string{"food_processing", "dairy", "meat", "beverages", "cold_storage", "pharmaceuticals"})
	v.SetDefault("schedule.regions", []string{"mexico", "south_america"})
	v.SetDefault("schedule.sources", []string{"all"})
	v.SetDefault("schedule.max_leads", 50)
	v.SetDefault("schedule.min_score", 40)
	v.SetDefault("schedule.lock_file", "/tmp/prospector-scheduled.lock")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration needed by a command. Mode is one of
// "run", "serve", or "migrate"; field rules apply to every mode.
func (c *Config) Validate(mode string) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Namespace()+" fails "+fe.Tag())
			}
			return eris.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return eris.Wrap(err, "config: validate")
	}

	var missing []string
	if c.Store.Driver != "sqlite" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	switch mode {
	case "run", "migrate":
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port %d out of range", c.Server.Port)
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
