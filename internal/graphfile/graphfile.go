// Package graphfile reads and writes persisted graph descriptions as JSON,
// YAML or HCL.
package graphfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/Cadence/internal/graph"
)

// Version is the only file format version understood.
const Version = 1

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	HCL  Format = "hcl"
)

var ErrUnknownFormat = errors.New("unknown graph file format")

// document is the on-disk shape: a version plus the description.
type document struct {
	Version           int `json:"version" yaml:"version"`
	graph.Description `yaml:",inline"`
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".hcl":
		return HCL, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load reads a graph description from path.
func Load(path string) (graph.Description, error) {
	format, err := FormatOf(path)
	if err != nil {
		return graph.Description{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Description{}, fmt.Errorf("failed to read graph file: %w", err)
	}
	d, err := Decode(data, format, path)
	if err != nil {
		return graph.Description{}, err
	}
	return d, nil
}

// Decode parses data in the given format. name is used in diagnostics.
// A missing version is read as the current one.
func Decode(data []byte, format Format, name string) (graph.Description, error) {
	var doc document
	switch format {
	case JSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return graph.Description{}, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return graph.Description{}, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	case HCL:
		d, version, err := decodeHCL(data, name)
		if err != nil {
			return graph.Description{}, err
		}
		doc = document{Version: version, Description: d}
	default:
		return graph.Description{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if doc.Version != 0 && doc.Version != Version {
		return graph.Description{}, fmt.Errorf("unsupported graph file version: %d", doc.Version)
	}
	return doc.Description, nil
}

// Encode renders d in the given format.
func Encode(d graph.Description, format Format) ([]byte, error) {
	doc := document{Version: Version, Description: d}
	switch format {
	case JSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case HCL:
		return encodeHCL(d)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Save writes d to path in the format implied by its extension. The file is
// written next to path and renamed into place.
func Save(path string, d graph.Description) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(d, format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".graph-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
