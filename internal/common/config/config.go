// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	LLM           LLMConfig               `mapstructure:"llm"`
	Agents        AgentsConfig            `mapstructure:"agents"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Search        SearchConfig            `mapstructure:"search"`
	Scraper       ScraperConfig           `mapstructure:"scraper"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Tracking      TrackingConfig          `mapstructure:"tracking"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Framework   string `mapstructure:"framework"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

// LLMConfig points at the Azure OpenAI deployment used by every agent.
type LLMConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ModelName   string  `mapstructure:"model_name"`
	APIKey      string  `mapstructure:"api_key"`
	APIVersion  string  `mapstructure:"api_version"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	JSONMode    bool    `mapstructure:"json_mode"`
}

type AgentsConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	TaskTimeout   int `mapstructure:"task_timeout"` // milliseconds
}

// PipelineConfig controls the orchestrator. Runtime is "llm" or "zeebe".
type PipelineConfig struct {
	Runtime           string `mapstructure:"runtime"`
	MaxResults        int    `mapstructure:"max_results"`
	ScrapeConcurrency int    `mapstructure:"scrape_concurrency"`
}

type SearchConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	UserAgent    string `mapstructure:"user_agent"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	MaxResults   int    `mapstructure:"max_results"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type ScraperConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	Timeout            int    `mapstructure:"timeout"` // milliseconds
	MaxParagraphs      int    `mapstructure:"max_paragraphs"`
	MinParagraphLength int    `mapstructure:"min_paragraph_length"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	ProcessID      string `mapstructure:"process_id"`
	BPMNPath       string `mapstructure:"bpmn_path"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every Zeebe worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TrackingConfig enables the Redis-backed run tracker.
type TrackingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // milliseconds
}

// NotificationConfig holds settings for the SNS completion notifier.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Tracing     bool   `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings. File mirrors log output to disk.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// OutputPaths returns the zap sinks for this logging configuration.
func (l LoggingConfig) OutputPaths() []string {
	paths := []string{l.Output}
	if l.File != "" {
		paths = append(paths, l.File)
	}
	return paths
}
