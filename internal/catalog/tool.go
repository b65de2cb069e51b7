package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceUser    Source = "user"
)

// Tool is a named external web resource. Optional fields are left empty when absent.
type Tool struct {
	Name            string   `toml:"name" json:"name" yaml:"name"`
	URL             string   `toml:"url" json:"url" yaml:"url"`
	Description     string   `toml:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
	Category        string   `toml:"category,omitempty" json:"category,omitempty" yaml:"category,omitempty"`
	ApplicableSites []string `toml:"applicable_sites,omitempty" json:"applicableSites,omitempty" yaml:"applicable_sites,omitempty"`
	Source          Source   `toml:"-" json:"source,omitempty" yaml:"-"`
}

type Document struct {
	Tools []Tool `toml:"tool"`
}

//go:embed builtin.toml
var builtinTOML []byte

var builtin []Tool

func init() {
	tools, err := ParseCatalog(builtinTOML)
	if err != nil {
		panic(fmt.Sprintf("builtin catalog: %v", err))
	}
	builtin = tools
}

// Builtin returns a copy of the compiled-in catalog.
func Builtin() []Tool {
	return append([]Tool(nil), builtin...)
}

func ParseCatalog(data []byte) ([]Tool, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range doc.Tools {
		if err := ValidateTool(doc.Tools[i]); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		doc.Tools[i].Source = SourceBuiltin
	}
	return doc.Tools, nil
}

// LoadFile reads an extra catalog from disk. A blank path yields no tools.
func LoadFile(path string) ([]Tool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tools, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tools, nil
}

func ValidateTool(tool Tool) error {
	if strings.TrimSpace(tool.Name) == "" {
		return errors.New("tool requires name")
	}
	if strings.TrimSpace(tool.URL) == "" {
		return fmt.Errorf("tool %q has no url", tool.Name)
	}
	return nil
}

// Merge concatenates the static catalog with user tools, static first.
func Merge(static, user []Tool) []Tool {
	out := make([]Tool, 0, len(static)+len(user))
	out = append(out, static...)
	for _, tool := range user {
		tool.Source = SourceUser
		out = append(out, tool)
	}
	return out
}
