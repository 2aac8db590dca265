package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonerrors "offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/tasks"
)

const (
	TaskVariable   = "task"
	OutputVariable = "output"
)

// errorVariables are set by the worker when it throws a BPMN error.
var errorVariables = []string{"errorCode", "errorMessage", "errorDetails"}

var ErrMissingOutput = errors.New("process instance finished without an output variable")

// InstanceCreator starts a process instance and waits for its result.
// *camunda.Client satisfies it.
type InstanceCreator interface {
	CreateInstanceWithResult(ctx context.Context, processID string, variables map[string]interface{}, fetch ...string) (string, error)
}

// ZeebeRuntime runs each task as an instance of the agent-task process and
// reads the answer back from the "output" variable. The execute-agent-task
// worker does the actual work.
type ZeebeRuntime struct {
	creator   InstanceCreator
	processID string
	logger    logger.Logger
}

func NewZeebeRuntime(creator InstanceCreator, processID string, log logger.Logger) *ZeebeRuntime {
	return &ZeebeRuntime{creator: creator, processID: processID, logger: log}
}

func (r *ZeebeRuntime) Execute(ctx context.Context, task *tasks.Task) (*Output, error) {
	r.logger.Debug("Starting agent task instance", map[string]interface{}{
		"processId": r.processID,
		"task":      task.Name,
	})

	raw, err := r.creator.CreateInstanceWithResult(ctx, r.processID, map[string]interface{}{
		TaskVariable: task,
	}, append([]string{OutputVariable}, errorVariables...)...)
	if err != nil {
		return nil, err
	}

	var result struct {
		Output       *Output `json:"output"`
		ErrorCode    string  `json:"errorCode"`
		ErrorMessage string  `json:"errorMessage"`
		ErrorDetails string  `json:"errorDetails"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decode process variables: %w", err)
	}
	if result.Output == nil {
		if result.ErrorCode != "" {
			return nil, &commonerrors.StandardError{
				Code:      commonerrors.ErrorCode(result.ErrorCode),
				Message:   result.ErrorMessage,
				Details:   result.ErrorDetails,
				Timestamp: time.Now().UTC(),
			}
		}
		return nil, ErrMissingOutput
	}
	if result.Output.TaskName == "" {
		result.Output.TaskName = task.Name
	}
	return result.Output, nil
}
