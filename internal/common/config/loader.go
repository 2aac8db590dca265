// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	RuntimeLLM   = "llm"
	RuntimeZeebe = "zeebe"

	// AgentTaskType is the Zeebe job type served by the agent workers.
	AgentTaskType = "execute-agent-task"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// LLM_API_KEY overrides llm.api_key, and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Offer Crew")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.framework", "offer-crew")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", 15000)
	v.SetDefault("server.write_timeout", 600000)
	v.SetDefault("server.shutdown_timeout", 30000)
	v.SetDefault("server.max_body_bytes", 1048576)

	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.model_name", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_version", "2024-02-01")
	v.SetDefault("llm.timeout", 120000)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.json_mode", false)

	v.SetDefault("agents.max_iterations", 5)
	v.SetDefault("agents.task_timeout", 300000)

	v.SetDefault("pipeline.runtime", RuntimeLLM)
	v.SetDefault("pipeline.max_results", 10)
	v.SetDefault("pipeline.scrape_concurrency", 4)

	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html")
	v.SetDefault("search.user_agent", "Mozilla")
	v.SetDefault("search.timeout", 100000)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.max_body_bytes", 5242880)

	v.SetDefault("scraper.user_agent", "Mozilla")
	v.SetDefault("scraper.timeout", 15000)
	v.SetDefault("scraper.max_paragraphs", 5)
	v.SetDefault("scraper.min_paragraph_length", 20)
	v.SetDefault("scraper.max_body_bytes", 5242880)

	v.SetDefault("camunda.broker_address", "")
	v.SetDefault("camunda.process_id", "offer-crew-agent-task")
	v.SetDefault("camunda.bpmn_path", "configs/bpmn/agent-task.bpmn")
	v.SetDefault("camunda.max_jobs_active", 10)
	v.SetDefault("camunda.timeout", 300000)
	v.SetDefault("camunda.request_timeout", 310000)

	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("tracking.enabled", false)
	v.SetDefault("tracking.key_prefix", "offer-crew:run:")
	v.SetDefault("tracking.ttl", 86400000)

	v.SetDefault("notifications.sns.enabled", false)
	v.SetDefault("notifications.sns.region", "us-east-1")
	v.SetDefault("notifications.sns.topic_arn", "")

	v.SetDefault("observability.service_name", "offer-crew")
	v.SetDefault("observability.tracing", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.file", "app.log")
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig honours the Azure variable names used by existing deployments.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.LLM.Endpoint, "AZURE_API_BASE"},
		{&cfg.LLM.ModelName, "MODEL_NAME"},
		{&cfg.LLM.APIKey, "AZURE_API_KEY"},
		{&cfg.LLM.APIVersion, "AZURE_API_VERSION"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
	}

	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

// applyDefaults guards values that must never be zero.
func applyDefaults(cfg *Config) {
	if cfg.Pipeline.MaxResults <= 0 {
		cfg.Pipeline.MaxResults = 10
	}
	if cfg.Pipeline.ScrapeConcurrency <= 0 {
		cfg.Pipeline.ScrapeConcurrency = 1
	}
	if cfg.Agents.MaxIterations <= 0 {
		cfg.Agents.MaxIterations = 5
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	if _, ok := cfg.Workers[AgentTaskType]; !ok {
		cfg.Workers[AgentTaskType] = WorkerConfig{Enabled: true}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set AZURE_API_KEY)")
	}

	switch cfg.Pipeline.Runtime {
	case RuntimeLLM:
	case RuntimeZeebe:
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required for the zeebe runtime")
		}
	default:
		return fmt.Errorf("pipeline.runtime must be %q or %q, got %q", RuntimeLLM, RuntimeZeebe, cfg.Pipeline.Runtime)
	}

	if cfg.Tracking.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when tracking is enabled")
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       300000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
