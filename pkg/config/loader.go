package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDir is where base.yaml and the per-environment files live.
const DefaultDir = "config"

// Load 加载分层配置并解码到 out
//
// Order (later wins): base.yaml, <env>.yaml, ${VAR} placeholders resolved from
// secrets.env and then the process environment.
func Load(env, dir string, out any) error {
	if dir == "" {
		dir = DefaultDir
	}

	merged, err := loadYAMLFile(filepath.Join(dir, "base.yaml"))
	if err != nil {
		return fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		envFile := filepath.Join(dir, env+".yaml")
		if _, statErr := os.Stat(envFile); statErr == nil {
			envConfig, err := loadYAMLFile(envFile)
			if err != nil {
				return fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
			merged = mergeMaps(merged, envConfig)
		}
	}

	secrets := map[string]string{}
	secretsFile := filepath.Join(dir, "secrets.env")
	if _, statErr := os.Stat(secretsFile); statErr == nil {
		secrets, err = loadEnvFile(secretsFile)
		if err != nil {
			return fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}
	merged = substituteEnvVars(merged, secrets)

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to re-encode config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func loadYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := map[string]any{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile 加载 KEY=VALUE 格式文件
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		env[strings.TrimSpace(key)] = value
	}
	return env, scanner.Err()
}

// mergeMaps returns dst overlaid with src; nested maps are merged recursively.
func mergeMaps(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		result[k] = v
	}
	for k, v := range src {
		dstMap, dstOK := result[k].(map[string]any)
		srcMap, srcOK := v.(map[string]any)
		if dstOK && srcOK {
			result[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		result[k] = v
	}
	return result
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func substituteEnvVars(cfg map[string]any, secrets map[string]string) map[string]any {
	result := make(map[string]any, len(cfg))
	for k, v := range cfg {
		result[k] = substituteValue(v, secrets)
	}
	return result
}

func substituteValue(v any, secrets map[string]string) any {
	switch val := v.(type) {
	case string:
		return substituteString(val, secrets)
	case map[string]any:
		return substituteEnvVars(val, secrets)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, secrets)
		}
		return out
	default:
		return v
	}
}

// substituteString resolves ${VAR}; the process environment beats secrets.env.
// Unknown placeholders resolve to an empty string.
func substituteString(s string, secrets map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return secrets[name]
	})
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（CONFIG_ENV，默认 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
