package fieldschema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/types"
)

//go:embed schema.cue
var constraintsCUE []byte

// platformFile mirrors #Platform after CUE has filled in defaults.
type platformFile struct {
	PlatformHierarchy []string           `json:"platformHierarchy"`
	Levels            map[string][]Field `json:"levels"`
}

// ParseCUE compiles a schema configuration, unifies it with the embedded
// constraints and decodes one Config per platform.
func ParseCUE(filename string, src []byte) (map[string]Config, error) {
	ctx := cuecontext.New()

	constraints := ctx.CompileBytes(constraintsCUE, cue.Filename("schema.cue"))
	if err := constraints.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema constraints: %w", err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %s", filename, cueerrors.Details(err, nil))
	}

	val := constraints.Unify(user)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %s", filename, cueerrors.Details(err, nil))
	}

	var raw map[string]platformFile
	if err := val.LookupPath(cue.ParsePath("platforms")).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding platforms: %w", err)
	}

	out := make(map[string]Config, len(raw))
	for name, pf := range raw {
		cfg := Config{Levels: make(map[types.EntityType]Schema, len(pf.Levels))}
		for _, lvl := range pf.PlatformHierarchy {
			cfg.PlatformHierarchy = append(cfg.PlatformHierarchy, types.EntityType(lvl))
		}
		for lvl, fields := range pf.Levels {
			cfg.Levels[types.EntityType(lvl)] = Schema(fields)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("platform %q: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}

// LoadCUE reads and parses a schema configuration file.
func LoadCUE(path string) (map[string]Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema config: %w", err)
	}
	return ParseCUE(path, src)
}

// LoadOrFallback builds a registry from path. Any load failure is logged and
// the registry answers every platform with the baked-in fallback schema.
func LoadOrFallback(path string, logger logrus.FieldLogger) *Registry {
	reg := NewRegistry(Fallback())
	if path == "" {
		logger.Info("no schema config set, using fallback schema")
		return reg
	}
	configs, err := LoadCUE(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("schema config load failed, using fallback schema")
		return reg
	}
	for name, cfg := range configs {
		if err := reg.Register(name, cfg); err != nil {
			logger.WithError(err).WithField("platform", name).Warn("skipping platform schema")
		}
	}
	logger.WithFields(logrus.Fields{"path": path, "platforms": reg.Platforms()}).Info("schema config loaded")
	return reg
}
