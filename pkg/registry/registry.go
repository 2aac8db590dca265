// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/validation"
	"offer-crew/internal/models"
	"offer-crew/internal/tasks"
)

const Version = "1.0.0"

// stageErrorCodes are the failures a task of any kind can end in.
var stageErrorCodes = []string{
	string(errors.ErrCodeSchemaValidationFailed),
	string(errors.ErrCodeAgentExecutionFailed),
	string(errors.ErrCodeLLMTimeout),
	string(errors.ErrCodePipelineCancelled),
}

// Build generates the registry from the task catalog.
func Build() (*TaskRegistry, error) {
	reg := &TaskRegistry{
		Version:     Version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}

	for _, d := range tasks.Catalog() {
		input, err := models.Schema(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", d.Kind, err)
		}
		output, err := models.Schema(d.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", d.Kind, err)
		}

		codes := append([]string{}, stageErrorCodes...)
		if d.Kind == tasks.KindSearch {
			codes = append(codes, string(errors.ErrCodeEmptySearchResults))
		}

		reg.Tasks = append(reg.Tasks, TaskEntry{
			ID:               fmt.Sprintf("%s-%s", d.Kind, d.Agent),
			Kind:             string(d.Kind),
			TaskType:         d.JobType,
			Agent:            d.Agent,
			AgentRole:        d.AgentRole,
			Description:      d.Description,
			ExpectedOutput:   d.ExpectedOutput,
			InputSchemaName:  d.InputSchema,
			OutputSchemaName: d.OutputSchema,
			InputSchema:      input,
			OutputSchema:     output,
			ErrorCodes:       codes,
			Tools:            d.Tools,
		})
	}
	return reg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadRegistry reads a registry saved as JSON or, for .yaml/.yml paths, YAML.
func LoadRegistry(path string) (*TaskRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var reg TaskRegistry
	if isYAML(path) {
		err = yaml.Unmarshal(data, &reg)
	} else {
		err = json.Unmarshal(data, &reg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// SaveRegistry writes reg to path, choosing the format from the extension.
func SaveRegistry(reg *TaskRegistry, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(reg)
	} else {
		data, err = json.MarshalIndent(reg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Validate checks required fields, unique ids and that every schema compiles.
func Validate(reg *TaskRegistry) error {
	if len(reg.Tasks) == 0 {
		return fmt.Errorf("registry contains no tasks")
	}

	ids := make(map[string]bool)
	for _, task := range reg.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task missing required field: ID")
		}
		if ids[task.ID] {
			return fmt.Errorf("duplicate task ID: %s", task.ID)
		}
		ids[task.ID] = true

		if task.Kind == "" {
			return fmt.Errorf("task %s missing required field: Kind", task.ID)
		}
		if task.TaskType == "" {
			return fmt.Errorf("task %s missing required field: TaskType", task.ID)
		}
		if task.AgentRole == "" {
			return fmt.Errorf("task %s missing required field: AgentRole", task.ID)
		}
		if err := validation.CompileSchema(task.InputSchema); err != nil {
			return fmt.Errorf("task %s input schema: %w", task.ID, err)
		}
		if err := validation.CompileSchema(task.OutputSchema); err != nil {
			return fmt.Errorf("task %s output schema: %w", task.ID, err)
		}
	}
	return nil
}
