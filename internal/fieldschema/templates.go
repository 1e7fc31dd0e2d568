package fieldschema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/adbatch/internal/types"
)

// Templates holds default row values: platform -> level -> field -> value.
type Templates map[string]map[types.EntityType]map[string]any

// ParseTemplates decodes a YAML default-value document.
func ParseTemplates(src []byte) (Templates, error) {
	var raw map[string]map[string]map[string]any
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	out := make(Templates, len(raw))
	for platform, levels := range raw {
		out[platform] = make(map[types.EntityType]map[string]any, len(levels))
		for lvl, defaults := range levels {
			et := types.EntityType(lvl)
			if !et.IsValid() {
				return nil, fmt.Errorf("platform %q: unknown level %q", platform, lvl)
			}
			out[platform][et] = normalizeYAML(defaults).(map[string]any)
		}
	}
	return out, nil
}

// LoadTemplates reads a YAML default-value file.
func LoadTemplates(path string) (Templates, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}
	return ParseTemplates(src)
}

// Defaults returns the template for one platform and level. A missing
// template yields an empty map.
func (t Templates) Defaults(platform string, lvl types.EntityType) map[string]any {
	if d, ok := t[platform][lvl]; ok {
		return d
	}
	return map[string]any{}
}

// normalizeYAML converts yaml.v3 decoded values into the JSON-compatible
// shapes rows use, so templated and user-entered rows canonicalize alike.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[fmt.Sprint(k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalizeYAML(vv)
		}
		return out
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case nil:
		return ""
	default:
		return x
	}
}
