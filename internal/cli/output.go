package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents command output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates format values.
func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", usagef("unsupported format %q", v)
	}
}

// Envelope is the machine-output payload.
type Envelope struct {
	Meta map[string]any `json:"meta" yaml:"meta"`
	Data any            `json:"data" yaml:"data"`
}

func buildEnvelope(version string, data any) Envelope {
	return Envelope{
		Meta: map[string]any{
			"generated_at": time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
			"version":      version,
		},
		Data: data,
	}
}

// renderPayload renders payload in json/yaml format.
func renderPayload(payload Envelope, format Format) (string, error) {
	switch format {
	case FormatJSON:
		bytes, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal json: %w", err)
		}
		return string(bytes) + "\n", nil
	case FormatYAML:
		bytes, err := yaml.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal yaml: %w", err)
		}
		return string(bytes), nil
	default:
		return "", fmt.Errorf("render payload only supports json/yaml")
	}
}

// writeResult emits data as an envelope, or through text for the text format.
func writeResult(w io.Writer, format Format, version string, data any, text func(io.Writer)) error {
	if format == FormatText {
		text(w)
		return nil
	}

	rendered, err := renderPayload(buildEnvelope(version, data), format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}
