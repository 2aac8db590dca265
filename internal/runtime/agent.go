package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"offer-crew/internal/common/logger"
	"offer-crew/internal/llm"
	"offer-crew/internal/tasks"
	"offer-crew/internal/tools"
)

var ErrEmptyAnswer = errors.New("agent returned an empty answer")

const finalAnswerPrompt = "Stop calling tools. Give your final answer now as a single JSON document matching the required schema."

// ChatCompleter is the part of the LLM client the agent runtime needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

type AgentConfig struct {
	MaxIterations int
	TaskTimeout   time.Duration
	JSONMode      bool
}

// AgentRuntime executes a task by talking to the model directly. Tool calls
// returned by the model are run locally for up to MaxIterations rounds, after
// which the model is asked for a final answer without tools.
type AgentRuntime struct {
	client  ChatCompleter
	toolbox *tools.Toolbox
	config  AgentConfig
	logger  logger.Logger
}

func NewAgentRuntime(client ChatCompleter, toolbox *tools.Toolbox, cfg AgentConfig, log logger.Logger) *AgentRuntime {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if toolbox == nil {
		toolbox = tools.NewToolbox()
	}
	return &AgentRuntime{client: client, toolbox: toolbox, config: cfg, logger: log}
}

func (r *AgentRuntime) Execute(ctx context.Context, task *tasks.Task) (*Output, error) {
	if r.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TaskTimeout)
		defer cancel()
	}

	toolset, err := r.toolbox.Resolve(task.Agent.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", task.Agent.Role, err)
	}

	log := r.logger.WithFields(map[string]interface{}{
		"task":  task.Name,
		"agent": task.Agent.Role,
	})

	messages := []llm.ChatMessage{
		{Role: "system", Content: task.Agent.SystemPrompt()},
		{Role: "user", Content: task.Prompt()},
	}

	if len(toolset) > 0 {
		definitions := toolDefinitions(toolset)
		for iter := 0; iter < r.config.MaxIterations; iter++ {
			resp, err := r.client.CreateChatCompletion(ctx, llm.ChatCompletionRequest{
				Messages:   messages,
				Tools:      definitions,
				ToolChoice: "auto",
			})
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", task.Agent.Role, err)
			}

			msg := resp.Choices[0].Message
			messages = append(messages, msg)
			if len(msg.ToolCalls) == 0 {
				if strings.TrimSpace(msg.Content) != "" {
					return r.output(task, msg.Content), nil
				}
				break
			}

			for _, tc := range msg.ToolCalls {
				result := r.callTool(ctx, tc)
				log.Debug("Tool call finished", map[string]interface{}{
					"tool":      tc.Function.Name,
					"iteration": iter + 1,
					"bytes":     len(result),
				})
				messages = append(messages, llm.ChatMessage{
					Role:       "tool",
					Content:    result,
					ToolCallID: tc.ID,
					Name:       tc.Function.Name,
				})
			}
		}
		messages = append(messages, llm.ChatMessage{Role: "user", Content: finalAnswerPrompt})
	}

	final := llm.ChatCompletionRequest{Messages: messages}
	if r.config.JSONMode {
		final.ResponseFormat = llm.JSONObjectFormat
	}
	resp, err := r.client.CreateChatCompletion(ctx, final)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", task.Agent.Role, err)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("agent %s: %w", task.Agent.Role, ErrEmptyAnswer)
	}
	log.Debug("Task finished", map[string]interface{}{"bytes": len(content)})
	return r.output(task, content), nil
}

func (r *AgentRuntime) callTool(ctx context.Context, tc llm.ToolCall) string {
	tool, ok := r.toolbox.Get(tc.Function.Name)
	if !ok {
		return fmt.Sprintf(`{"error": "unknown tool: %s"}`, tc.Function.Name)
	}
	return tool.Call(ctx, tc.Function.Arguments)
}

func (r *AgentRuntime) output(task *tasks.Task, raw string) *Output {
	return &Output{TaskName: task.Name, Agent: task.Agent.Role, Raw: raw}
}

func toolDefinitions(toolset []tools.Tool) []llm.Tool {
	defs := make([]llm.Tool, 0, len(toolset))
	for _, t := range toolset {
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
