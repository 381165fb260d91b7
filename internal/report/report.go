// Package report persists copy-move results as YAML or JSON documents.
package report

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
	"github.com/Molcarrus/image-forensics/internal/textmask"
)

// Report is the serialisable summary of one analysis.
type Report struct {
	Image       string    `json:"image" yaml:"image"`
	Analyzer    string    `json:"analyzer" yaml:"analyzer"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Width       int       `json:"width" yaml:"width"`
	Height      int       `json:"height" yaml:"height"`

	Params     copymove.Params  `json:"params" yaml:"params"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Matches    []copymove.Match `json:"matches" yaml:"matches"`

	// Excluded lists the text regions left out of matching.
	Excluded []image.Rectangle `json:"excluded,omitempty" yaml:"excluded,omitempty"`

	Stats copymove.Stats `json:"stats" yaml:"stats"`
}

// FromResult builds a report for the analysis of the image at path.
func FromResult(path string, params copymove.Params, res *copymove.Result, excluded []textmask.Region) *Report {
	return &Report{
		Image:       path,
		Analyzer:    res.Kind(),
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Width:       res.Width,
		Height:      res.Height,
		Params:      params,
		Confidence:  res.Confidence,
		Matches:     res.Matches,
		Excluded:    textmask.Rectangles(excluded),
		Stats:       res.Stats,
	}
}

// Write stores r at path: YAML for .yaml and .yml, JSON for .json.
func Write(r *Report, path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	case ".json":
		data, err = json.MarshalIndent(r, "", "  ")
	default:
		return fmt.Errorf("unsupported report format %q (use .yaml, .yml or .json)", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	case ".json":
		err = json.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("unsupported report format %q (use .yaml, .yml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
