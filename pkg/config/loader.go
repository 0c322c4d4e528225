package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load 读取 configDir 下的分层配置并解码到 out
//
//	base.yaml            必须存在
//	<env>.yaml           可选，按 key 深度覆盖 base
//	secrets.env          可选，为 ${VAR} 占位符提供取值
//
// 占位符先查 secrets.env 再查非空的进程环境变量，都没有时原样保留，
// 由调用方的 Validate 决定是否必填。
func Load(env, configDir string, out any) error {
	if configDir == "" {
		configDir = "config"
	}

	tree, err := readLayers(configDir, env)
	if err != nil {
		return err
	}

	secrets, err := readSecrets(filepath.Join(configDir, "secrets.env"))
	if err != nil {
		return err
	}
	tree = expandTree(tree, func(name string) (string, bool) {
		if v, ok := secrets[name]; ok {
			return v, true
		}
		v := os.Getenv(name)
		return v, v != ""
	}).(map[string]any)

	// map 回写成 yaml 再解码，沿用结构体上的 yaml tag 和 Duration 解析
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("re-encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func readLayers(dir, env string) (map[string]any, error) {
	tree, err := readYAML(filepath.Join(dir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load base.yaml: %w", err)
	}
	if env == "" || env == "base" {
		return tree, nil
	}

	overlay, err := readYAML(filepath.Join(dir, env+".yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return tree, nil
	case err != nil:
		return nil, fmt.Errorf("load %s.yaml: %w", env, err)
	}
	return overlayTree(tree, overlay), nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree := map[string]any{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// readSecrets 解析 KEY=value 行，允许 export 前缀和成对引号；文件不存在时返回空
func readSecrets(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load secrets.env: %w", err)
	}

	out := map[string]string{}
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("secrets.env line %d: expected KEY=value", n+1)
		}
		out[key] = unquote(strings.TrimSpace(value))
	}
	return out, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// overlayTree 返回 base 的副本，嵌套 map 逐 key 合并，其余值整体替换
func overlayTree(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		bm, bok := out[k].(map[string]any)
		om, ook := v.(map[string]any)
		if bok && ook {
			out[k] = overlayTree(bm, om)
			continue
		}
		out[k] = v
	}
	return out
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandTree 替换字符串里的 ${VAR}，包括列表元素；只识别花括号形式，裸 $ 保持不变
func expandTree(node any, lookup func(string) (string, bool)) any {
	switch v := node.(type) {
	case string:
		return placeholder.ReplaceAllStringFunc(v, func(m string) string {
			if val, ok := lookup(m[2 : len(m)-1]); ok {
				return val
			}
			return m
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = expandTree(child, lookup)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = expandTree(child, lookup)
		}
		return out
	default:
		return node
	}
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 当前配置环境，取 CONFIG_ENV，默认 local
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
