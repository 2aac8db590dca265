// Package tools holds the actions agents may call while executing a task.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is an action advertised to the model. Call never fails: problems are
// reported inside the returned JSON text.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Call(ctx context.Context, arguments string) string
}

// Toolbox resolves tools by name.
type Toolbox struct {
	tools map[string]Tool
}

func NewToolbox(tools ...Tool) *Toolbox {
	tb := &Toolbox{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		tb.tools[t.Name()] = t
	}
	return tb
}

func (tb *Toolbox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Resolve returns the named tools in order.
func (tb *Toolbox) Resolve(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := tb.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool: %s", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func (tb *Toolbox) Names() []string {
	names := make([]string, 0, len(tb.tools))
	for name := range tb.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
