package fieldschema

import (
	"fmt"
	"sort"
)

// Drift reports inconsistencies between platform schemas and the row
// templates that prefill them. An empty result means the two agree.
//
// Templates must name configured platforms, active levels and known
// fields. A child level whose parent is in the hierarchy must carry the
// parent reference field, or staged children could never be linked.
func Drift(configs map[string]Config, tpl Templates) []string {
	var out []string

	for _, platform := range sortedKeys(configs) {
		cfg := configs[platform]
		for _, lvl := range cfg.PlatformHierarchy {
			parent, ok := lvl.ParentType()
			if !ok || !cfg.HasLevel(parent) {
				continue
			}
			field, _ := lvl.ParentField()
			if _, ok := cfg.Levels[lvl].Lookup(field); !ok {
				out = append(out, fmt.Sprintf("%s/%s: missing parent field %q", platform, lvl, field))
			}
		}
	}

	for _, platform := range sortedKeys(tpl) {
		cfg, ok := configs[platform]
		if !ok {
			out = append(out, fmt.Sprintf("templates: platform %q has no schema", platform))
			continue
		}
		for lvl, values := range tpl[platform] {
			schema, ok := cfg.Level(lvl)
			if !ok {
				out = append(out, fmt.Sprintf("templates: %s/%s is not in the hierarchy", platform, lvl))
				continue
			}
			for _, id := range sortedKeys(values) {
				if _, ok := schema.Lookup(id); !ok {
					out = append(out, fmt.Sprintf("templates: %s/%s sets unknown field %q", platform, lvl, id))
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
