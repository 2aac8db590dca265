// pkg/registry/schema.go
package registry

// TaskRegistry documents every agent task the pipeline can dispatch.
type TaskRegistry struct {
	Version     string      `json:"version" yaml:"version"`
	LastUpdated string      `json:"lastUpdated" yaml:"lastUpdated"`
	Tasks       []TaskEntry `json:"tasks" yaml:"tasks"`
}

type TaskEntry struct {
	ID               string                 `json:"id" yaml:"id"`
	Kind             string                 `json:"kind" yaml:"kind"`
	TaskType         string                 `json:"taskType" yaml:"taskType"`
	Agent            string                 `json:"agent" yaml:"agent"`
	AgentRole        string                 `json:"agentRole" yaml:"agentRole"`
	Description      string                 `json:"description" yaml:"description"`
	ExpectedOutput   string                 `json:"expectedOutput" yaml:"expectedOutput"`
	InputSchemaName  string                 `json:"inputSchemaName" yaml:"inputSchemaName"`
	OutputSchemaName string                 `json:"outputSchemaName" yaml:"outputSchemaName"`
	InputSchema      map[string]interface{} `json:"inputSchema" yaml:"inputSchema"`
	OutputSchema     map[string]interface{} `json:"outputSchema" yaml:"outputSchema"`
	ErrorCodes       []string               `json:"errorCodes" yaml:"errorCodes"`
	Tools            []string               `json:"tools,omitempty" yaml:"tools,omitempty"`
}
