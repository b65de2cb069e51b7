package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unextension/unext/internal/store"
)

const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// toolFile is the document layout shared by import and export. TOML uses [[tool]]
// tables, YAML and JSON a top-level "tools" list.
type toolFile struct {
	Tools []store.UserTool `yaml:"tools" json:"tools" toml:"tool"`
}

type ImportOptions struct {
	Patterns []string
}

// Import appends the tools from every file matching the patterns, in order, with a
// single write.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	paths, err := expandPatterns(opts.Patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(opts.Patterns, ", "))
	}

	type imported struct {
		path  string
		tools []store.UserTool
	}
	batches := make([]imported, 0, len(paths))
	for _, path := range paths {
		tools, err := readToolFile(path)
		if err != nil {
			return err
		}
		for i, tool := range tools {
			if strings.TrimSpace(tool.Name) == "" {
				return fmt.Errorf("%s: tool %d: %w", path, i, store.ErrEmptyName)
			}
			if strings.TrimSpace(tool.URL) == "" {
				return fmt.Errorf("%s: tool %q: %w", path, tool.Name, store.ErrEmptyURL)
			}
			tools[i].Name = strings.TrimSpace(tool.Name)
			tools[i].URL = strings.TrimSpace(tool.URL)
		}
		batches = append(batches, imported{path: path, tools: tools})
	}

	current, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		current = append(current, batch.tools...)
	}
	if err := a.Store.Save(ctx, current); err != nil {
		return err
	}
	for _, batch := range batches {
		a.reporter().Imported(batch.path, len(batch.tools))
	}
	return nil
}

type ExportOptions struct {
	Format string
	Output string
}

func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	tools, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	format := opts.Format
	if strings.TrimSpace(format) == "" {
		format = formatFromPath(opts.Output)
	}
	data, err := encodeToolFile(format, tools)
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.Output) == "" || opts.Output == "-" {
		_, err := a.out().Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return err
	}
	a.reporter().Info(fmt.Sprintf("exported %d tools to %s", len(tools), opts.Output))
	return nil
}

func expandPatterns(patterns []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			if _, err := os.Stat(pattern); err != nil {
				return nil, err
			}
			matches = []string{pattern}
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true
			out = append(out, match)
		}
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

func readToolFile(path string) ([]store.UserTool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tools, err := decodeToolFile(formatFromPath(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tools, nil
}

func decodeToolFile(format string, data []byte) ([]store.UserTool, error) {
	trimmed := bytes.TrimSpace(data)
	var doc toolFile
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case FormatJSON:
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.Tools); err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
			break
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		if len(trimmed) > 0 && trimmed[0] == '-' {
			if err := yaml.Unmarshal(trimmed, &doc.Tools); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
			break
		}
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return doc.Tools, nil
}

func encodeToolFile(format string, tools []store.UserTool) ([]byte, error) {
	if tools == nil {
		tools = []store.UserTool{}
	}
	doc := toolFile{Tools: tools}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatYAML, "yml":
		return yaml.Marshal(doc)
	case FormatTOML:
		return toml.Marshal(doc)
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
	}
}
