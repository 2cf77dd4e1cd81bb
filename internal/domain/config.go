package domain

import "time"

// Config holds the complete RiskIQ configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Tier determines feature availability
	Tier Tier `mapstructure:"tier" yaml:"tier"`

	// Component configurations
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `mapstructure:"eventBus" yaml:"eventBus"`
	Inference  InferenceConfig  `mapstructure:"inference" yaml:"inference"`

	// Analyzer settings
	Compliance ComplianceConfig `mapstructure:"compliance" yaml:"compliance"`
	Fraud      FraudConfig      `mapstructure:"fraud" yaml:"fraud"`
	Risk       RiskConfig       `mapstructure:"risk" yaml:"risk"`
	Rules      RulesConfig      `mapstructure:"rules" yaml:"rules"`
	Reports    ReportsConfig    `mapstructure:"reports" yaml:"reports"`
	Worker     WorkerConfig     `mapstructure:"worker" yaml:"worker"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `mapstructure:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// InferenceConfig selects and tunes the external NLP backend.
type InferenceConfig struct {
	// Provider is "huggingface", "openai", "gemini" or empty to disable.
	Provider string `mapstructure:"provider" yaml:"provider"`
	APIKey   string `mapstructure:"apiKey" yaml:"apiKey"`
	BaseURL  string `mapstructure:"baseURL" yaml:"baseURL"`

	ClassifierModel string   `mapstructure:"classifierModel" yaml:"classifierModel"`
	GeneratorModels []string `mapstructure:"generatorModels" yaml:"generatorModels"` // tried in order
	RiskModel       string   `mapstructure:"riskModel" yaml:"riskModel"`
	MaxTokens       int      `mapstructure:"maxTokens" yaml:"maxTokens"`

	// Timeout bounds each external call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`

	// CacheTTL > 0 memoises responses in the cache layer.
	CacheTTL time.Duration `mapstructure:"cacheTTL" yaml:"cacheTTL"`
}

// Enabled reports whether an inference provider is configured.
func (c InferenceConfig) Enabled() bool {
	return c.Provider != ""
}

// ComplianceConfig tunes document analysis.
type ComplianceConfig struct {
	MaxConcurrency int `mapstructure:"maxConcurrency" yaml:"maxConcurrency"`
}

// FraudConfig tunes fraud scoring.
type FraudConfig struct {
	// VelocityWindow is how long repeated submissions of one ID are counted.
	VelocityWindow time.Duration `mapstructure:"velocityWindow" yaml:"velocityWindow"`
}

// RiskConfig tunes loan-risk output formatting and model refinement.
type RiskConfig struct {
	CurrencySymbol  string `mapstructure:"currencySymbol" yaml:"currencySymbol"`
	Locale          string `mapstructure:"locale" yaml:"locale"`
	ModelRefinement bool   `mapstructure:"modelRefinement" yaml:"modelRefinement"`
}

// RulesConfig points at optional YAML rule tables replacing the defaults.
type RulesConfig struct {
	FraudFile string `mapstructure:"fraudFile" yaml:"fraudFile"`
	RiskFile  string `mapstructure:"riskFile" yaml:"riskFile"`
}

// ReportsConfig holds report generation settings.
type ReportsConfig struct {
	Institution string `mapstructure:"institution" yaml:"institution"`

	// Schedule is a six-field cron expression; empty disables scheduling.
	Schedule  string   `mapstructure:"schedule" yaml:"schedule"`
	TenantIDs []string `mapstructure:"tenantIds" yaml:"tenantIds"`
}

// WorkerConfig holds async compliance worker settings.
type WorkerConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Count     int      `mapstructure:"count" yaml:"count"`
	TenantIDs []string `mapstructure:"tenantIds" yaml:"tenantIds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string `mapstructure:"serviceName" yaml:"serviceName"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultTenantID is used when a caller does not name a tenant.
const DefaultTenantID = "default"

// DefaultConfig returns a default configuration for Community tier.
// Inference is disabled, so every analyzer runs its rule tier only.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./riskiq.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalTTL:     5 * time.Minute,
			LocalCleanup: 10 * time.Minute,
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Inference: InferenceConfig{
			ClassifierModel: "facebook/bart-large-mnli",
			GeneratorModels: []string{"google/flan-t5-large", "microsoft/prophetnet-large-uncased"},
			RiskModel:       "mistralai/Mistral-7B-Instruct-v0.2",
			MaxTokens:       800,
			Timeout:         10 * time.Second,
			Burst:           5,
			CacheTTL:        time.Hour,
		},
		Compliance: ComplianceConfig{
			MaxConcurrency: 8,
		},
		Fraud: FraudConfig{
			VelocityWindow: 24 * time.Hour,
		},
		Risk: RiskConfig{
			CurrencySymbol: "₹",
			Locale:         "en-IN",
		},
		Reports: ReportsConfig{
			Institution: "RiskIQ Client",
		},
		Worker: WorkerConfig{
			Count: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "riskiq",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "riskiq",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalTTL:       time.Minute,
		LocalCleanup:   5 * time.Minute,
		LocalMaxSize:   10000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "riskiq-workers",
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
