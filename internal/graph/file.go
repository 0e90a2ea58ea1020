package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alfredjeanlab/flowstudio/internal/model"
	"gopkg.in/yaml.v3"
)

// ReadFile loads a graph document. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func ReadFile(path string) (model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Graph{}, err
	}
	var g model.Graph
	if isYAML(path) {
		err = yaml.Unmarshal(data, &g)
	} else {
		err = json.Unmarshal(data, &g)
	}
	if err != nil {
		return model.Graph{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// Load reads a graph document and imports it into a new editor.
func Load(path string) (*Editor, error) {
	g, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Import(g)
}

// WriteFile stores a graph document, choosing the encoding from the extension.
func WriteFile(path string, g model.Graph) error {
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("encoding graph: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding graph: %w", err)
		}
	} else {
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding graph: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
