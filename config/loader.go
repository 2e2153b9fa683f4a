package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SolaceDev/solace-ai-connector/errors"
)

// envVarPattern matches ${NAME} and ${NAME, default} substitutions.
var envVarPattern = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:,([^}]*))?\}`)

// LoadFiles reads, merges and resolves one or more YAML configuration
// documents. Later files override earlier ones.
func LoadFiles(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "config", "LoadFiles", "path check")
	}
	docs := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "LoadFiles", fmt.Sprintf("read %s", path))
		}
		docs = append(docs, data)
	}
	return LoadDocuments(docs...)
}

// LoadDocuments merges and resolves raw YAML documents in order.
func LoadDocuments(docs ...[]byte) (*Config, error) {
	merged := map[string]any{}
	for i, doc := range docs {
		substituted, err := substituteEnv(string(doc))
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "LoadDocuments", fmt.Sprintf("env substitution in document %d", i))
		}
		var raw map[string]any
		if err := yaml.Unmarshal([]byte(substituted), &raw); err != nil {
			return nil, errors.WrapFatal(err, "config", "LoadDocuments", fmt.Sprintf("parse document %d", i))
		}
		merged = deepMerge(merged, raw)
	}
	return FromMap(merged)
}

// FromMap resolves invoke blocks in a merged configuration map and decodes
// it into the typed Config.
func FromMap(raw map[string]any) (*Config, error) {
	resolved, err := ResolveValues(raw)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "FromMap", "invoke resolution")
	}
	root, ok := resolved.(map[string]any)
	if !ok {
		root = map[string]any{}
	}
	cfg, err := decode(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// substituteEnv replaces ${NAME} and ${NAME, default} references from the
// environment. A missing variable with no default is a configuration
// error.
func substituteEnv(text string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if strings.Contains(match, ",") {
			return strings.TrimSpace(groups[2])
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: undefined environment variables: %s",
			errors.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return out, nil
}

// deepMerge merges override into base: mappings merge key-wise, all other
// values (including sequences) are replaced by the override.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, baseOk := result[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// DeepMerge merges override into base and returns the result. Exposed for
// the code-defined app config merge, where YAML overrides code defaults.
func DeepMerge(base, override map[string]any) map[string]any {
	return deepMerge(base, override)
}
