package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/flowstudio/internal/model"
	"gopkg.in/yaml.v3"
)

// Formats accepted by the export endpoint.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Renderer produces an artifact for a graph. It is implemented by
// client.HTTPClient.
type Renderer interface {
	ExportWorkflow(ctx context.Context, g model.Graph, format string) ([]byte, error)
}

// Exporter fetches an artifact once and fans it out to destinations.
type Exporter struct {
	renderer     Renderer
	destinations []Destination
	logger       *slog.Logger
}

func NewExporter(r Renderer, destinations []Destination, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{renderer: r, destinations: destinations, logger: logger}
}

// Export renders g in format, checks the artifact parses, and writes it to
// every destination. A failing destination does not stop the others; their
// errors are joined.
func (e *Exporter) Export(ctx context.Context, g model.Graph, format string) ([]byte, error) {
	data, err := e.renderer.ExportWorkflow(ctx, g, format)
	if err != nil {
		return nil, fmt.Errorf("export workflow: %w", err)
	}
	if err := CheckArtifact(data, format); err != nil {
		return nil, err
	}

	var errs []error
	for _, dest := range e.destinations {
		if err := dest.Write(ctx, data); err != nil {
			e.logger.Error("export destination write failed", "destination", dest.String(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest, err))
			continue
		}
		e.logger.Info("export written", "destination", dest.String(), "bytes", len(data))
	}
	return data, errors.Join(errs...)
}

// CheckArtifact verifies the artifact is a well-formed document of format.
// Unknown formats are passed through.
func CheckArtifact(data []byte, format string) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("export returned an empty artifact")
	}
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("export artifact is not valid YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("export artifact is not valid JSON: %w", err)
		}
	}
	return nil
}
