package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/config"
)

// FileConfigLoader reads a YAML, JSON or TOML document through the go-config
// file provider. A missing optional file yields an empty layer.
type FileConfigLoader struct {
	Path     string
	Optional bool
}

func (l FileConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if l.Optional && os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config %s: %w", path, err)
	}
	out, err := loadProviderLayer(ctx, config.FileProvider[Config](path))
	if err != nil {
		return nil, fmt.Errorf("core: parse config %s: %w", path, err)
	}
	return out, nil
}

// EnvConfigLoader maps PREFIX_SECTION__KEY variables onto nested config keys
// through the go-config env provider. Values are coerced to the type of the
// matching default and unknown keys are dropped.
type EnvConfigLoader struct {
	Prefix string
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Prefix: "COMMUNITY"}
}

func (l EnvConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	prefix := strings.ToUpper(strings.TrimSpace(l.Prefix))
	if prefix == "" {
		prefix = "COMMUNITY"
	}
	prefix = strings.TrimSuffix(prefix, "_") + "_"

	layer, err := loadProviderLayer(ctx, config.EnvProvider[Config](prefix, envDelimiter))
	if err != nil {
		return nil, fmt.Errorf("core: load env: %w", err)
	}

	kinds := configToLayerMap(DefaultConfig(), true)
	out := map[string]any{}
	var walkErr error
	walkLeaves(layer, nil, func(path []string, value any) {
		if walkErr != nil {
			return
		}
		template, found := lookupPath(kinds, path)
		if !found {
			return
		}
		coerced, err := coerceEnvValue(template, fmt.Sprint(value))
		if err != nil {
			walkErr = fmt.Errorf("core: env %s%s: %w", prefix, strings.ToUpper(strings.Join(path, envDelimiter)), err)
			return
		}
		setPath(out, path, coerced)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

const envDelimiter = "__"

// loadProviderLayer runs a single go-config provider against a fresh koanf
// tree and returns its nested values.
func loadProviderLayer(ctx context.Context, build config.ProviderBuilder[Config]) (map[string]any, error) {
	container := config.New(DefaultConfig())
	provider, err := build(container)
	if err != nil {
		return nil, err
	}
	if err := provider.Load(ctx, container.K); err != nil {
		return nil, err
	}
	return container.K.Raw(), nil
}

func walkLeaves(values map[string]any, prefix []string, visit func(path []string, value any)) {
	for key, value := range values {
		path := append(append([]string(nil), prefix...), key)
		if nested, ok := value.(map[string]any); ok {
			walkLeaves(nested, path, visit)
			continue
		}
		visit(path, value)
	}
}

// ChainConfigLoader merges loaders in order; later loaders win.
type ChainConfigLoader []RawConfigLoader

func (c ChainConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		layer, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeRaw(out, layer)
	}
	return out, nil
}

func mergeRaw(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeRaw(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

func lookupPath(values map[string]any, path []string) (any, bool) {
	var current any = values
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	if _, isSection := current.(map[string]any); isSection {
		return nil, false
	}
	return current, true
}

func setPath(values map[string]any, path []string, value any) {
	current := values
	for _, segment := range path[:len(path)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

func coerceEnvValue(template any, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch template.(type) {
	case bool:
		return strconv.ParseBool(value)
	case int64:
		return strconv.ParseInt(value, 10, 64)
	case float64:
		return strconv.ParseFloat(value, 64)
	case []string:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return value, nil
	}
}
