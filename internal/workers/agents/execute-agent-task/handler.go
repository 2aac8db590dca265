// internal/workers/agents/execute-agent-task/handler.go
package executeagenttask

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
	"offer-crew/internal/llm"
	"offer-crew/internal/runtime"
	"offer-crew/internal/tasks"
)

const (
	TaskType = tasks.JobType
)

type Handler struct {
	config       *Config
	runtime      runtime.Runtime
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, rt runtime.Runtime, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runtime:      rt,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	if input.Task == nil {
		return nil, errors.NewInvalidRequestError("task variable is required")
	}
	if input.Task.Kind == "" || input.Task.Agent.Role == "" {
		return nil, errors.NewInvalidRequestError("task kind and agent role are required")
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	out, err := h.runtime.Execute(ctx, input.Task)
	if err != nil {
		return nil, classify(input.Task, err)
	}

	h.logger.Info("agent task completed", map[string]interface{}{
		"task":   input.Task.Name,
		"agent":  out.Agent,
		"length": len(out.Raw),
	})
	return &Output{Output: out}, nil
}

func classify(task *tasks.Task, err error) error {
	switch {
	case stderrors.Is(err, llm.ErrLLMTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewLLMTimeoutError(err)
	case stderrors.Is(err, llm.ErrLLMRequestFailed):
		return errors.NewLLMRequestFailedError(err)
	}
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return errors.NewAgentExecutionError(task.Name, err)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, errors.NewInternalError(err))
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
