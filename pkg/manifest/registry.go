package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
Registry holds the loaded tool manifests. It is read-only after Load
and safe to share across consumers without locking; reloading means
constructing a fresh Registry and swapping the handle.
*/
type Registry struct {
	tools map[string]Tool
}

/*
Load reads every *.json manifest in dir. A manifest that fails to parse
or validate is logged and skipped so one bad entry cannot take the
whole registry down. A missing directory yields an empty registry.
*/
func Load(dir string) (*Registry, error) {
	registry := &Registry{tools: make(map[string]Tool)}

	entries, err := os.ReadDir(dir)

	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("manifest directory not found", "dir", dir)
			return registry, nil
		}

		return nil, errors.ErrTransport.WithMessagef("failed to read manifest directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)

		if err != nil {
			log.Error("failed to read manifest", "path", path, "error", err)
			continue
		}

		var tool Tool

		if err := json.Unmarshal(data, &tool); err != nil {
			log.Error("failed to parse manifest", "path", path, "error", err)
			continue
		}

		if err := tool.Validate(); err != nil {
			log.Error("invalid manifest", "path", path, "error", err)
			continue
		}

		registry.tools[tool.ToolID] = tool
		log.Info("loaded tool manifest", "tool", tool.ToolID)
	}

	return registry, nil
}

/*
NewRegistry builds a registry directly from manifests, used by tests
and embedded deployments that do not read from disk.
*/
func NewRegistry(tools ...Tool) *Registry {
	registry := &Registry{tools: make(map[string]Tool, len(tools))}

	for _, tool := range tools {
		registry.tools[tool.ToolID] = tool
	}

	return registry
}

/*
Get returns the manifest for a tool id.
*/
func (registry *Registry) Get(toolID string) (Tool, bool) {
	tool, ok := registry.tools[toolID]
	return tool, ok
}

/*
List returns all tools, or with a scope filter only the tools whose
auth scopes intersect the filter. Union semantics: one matching scope
is enough.
*/
func (registry *Registry) List(scopes ...string) []Tool {
	tools := make([]Tool, 0, len(registry.tools))

	for _, tool := range registry.tools {
		if len(scopes) > 0 && !intersects(tool.Auth.Scope, scopes) {
			continue
		}

		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].ToolID < tools[j].ToolID
	})

	return tools
}

/*
ValidateInputs checks an input map against the manifest. The check is
closed: a key the manifest does not declare is a rejection, which keeps
the executor's attack surface to exactly the declared shape.
*/
func (registry *Registry) ValidateInputs(toolID string, inputs map[string]any) error {
	tool, ok := registry.Get(toolID)

	if !ok {
		return errors.ErrToolNotFound.WithMessagef("Tool not found: %s", toolID)
	}

	for name, spec := range tool.Inputs {
		if _, present := inputs[name]; spec.Required && !present {
			return errors.ErrValidation.WithMessagef("Missing required parameter: %s", name)
		}
	}

	for name, value := range inputs {
		spec, declared := tool.Inputs[name]

		if !declared {
			return errors.ErrValidation.WithMessagef("Unknown parameter: %s", name)
		}

		if !matchesType(value, spec.Type) {
			return errors.ErrValidation.WithMessagef("Parameter %s must be %s", name, spec.Type)
		}
	}

	return nil
}

/*
CheckConstraints evaluates the numeric constraints the manifest
declares, independently of type validation. A constraint "max_<name>"
limits the numeric input "<name>".
*/
func (registry *Registry) CheckConstraints(toolID string, inputs map[string]any) error {
	tool, ok := registry.Get(toolID)

	if !ok {
		return errors.ErrToolNotFound.WithMessagef("Tool not found: %s", toolID)
	}

	for key, limit := range tool.Constraints {
		name, isMax := strings.CutPrefix(key, "max_")

		if !isMax {
			continue
		}

		value, present := inputs[name]

		if !present {
			continue
		}

		number, ok := asNumber(value)

		if !ok {
			continue
		}

		if number > limit {
			return errors.ErrConstraint.WithMessagef("%s exceeds limit: %v > %v", name, number, limit)
		}
	}

	return nil
}

func intersects(held, wanted []string) bool {
	for _, h := range held {
		for _, w := range wanted {
			if h == w {
				return true
			}
		}
	}

	return false
}

func matchesType(value any, declared string) bool {
	switch declared {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON numbers decode as float64; accept integral values.
			return v == float64(int64(v))
		default:
			return false
		}
	case TypeNumber:
		_, ok := asNumber(value)
		return ok
	default:
		return false
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
