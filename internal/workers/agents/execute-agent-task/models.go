// internal/workers/agents/execute-agent-task/models.go
package executeagenttask

import (
	"offer-crew/internal/runtime"
	"offer-crew/internal/tasks"
)

type Input struct {
	Task *tasks.Task `json:"task"`
}

type Output struct {
	Output *runtime.Output `json:"output"`
}
