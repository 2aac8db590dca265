// internal/workers/agents/execute-agent-task/config.go
package executeagenttask

import (
	"time"

	"offer-crew/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the worker timeout, falling back to the agent task timeout.
func LoadConfig(cfg *config.Config) *Config {
	c := &Config{Timeout: 10 * time.Minute}
	if wcfg, ok := cfg.Workers[TaskType]; ok && wcfg.Timeout > 0 {
		c.Timeout = time.Duration(wcfg.Timeout) * time.Millisecond
	} else if cfg.Agents.TaskTimeout > 0 {
		c.Timeout = time.Duration(cfg.Agents.TaskTimeout) * time.Millisecond
	}
	return c
}
