// Package report renders pipeline results as JSON, YAML or a terminal
// summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/moolen/sentinel/internal/pipeline"
)

// Format selects the output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat parses an output format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatText, "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected json, yaml or text)", s)
	}
}

// WriteJSON writes the result as indented JSON
func WriteJSON(w io.Writer, result *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result as JSON: %w", err)
	}
	return nil
}

// WriteYAML writes the result as YAML
func WriteYAML(w io.Writer, result *pipeline.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result as YAML: %w", err)
	}
	return enc.Close()
}

// Write renders the result in the given format. styled only affects text.
func Write(w io.Writer, result *pipeline.Result, format Format, styled bool) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatYAML:
		return WriteYAML(w, result)
	case FormatText:
		_, err := io.WriteString(w, FormatSummary(result, styled))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
