package report

import (
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
	"github.com/Molcarrus/image-forensics/internal/textmask"
)

func sampleResult() *copymove.Result {
	return &copymove.Result{
		Matches: []copymove.Match{{
			Source:       image.Pt(40, 40),
			Target:       image.Pt(230, 230),
			SourceRegion: image.Rect(10, 10, 74, 74),
			TargetRegion: image.Rect(200, 200, 264, 264),
			Offset:       image.Pt(190, 190),
			Similarity:   0.987,
			Members:      2401,
			Transform:    copymove.Translation(190, 190),
		}},
		Confidence: 0.73,
		Width:      300,
		Height:     300,
		Stats:      copymove.Stats{Blocks: 81225, RawMatches: 2401, Clusters: 1, Coverage: 0.09, MatchTime: 1500 * time.Millisecond},
	}
}

func TestWriteRead(t *testing.T) {
	excluded := []textmask.Region{{Bounds: image.Rect(0, 280, 120, 300), Confidence: 0.9}}
	r := FromResult("photo.png", copymove.DefaultParams(), sampleResult(), excluded)

	for _, name := range []string{"report.yaml", "report.yml", "report.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Write(r, path); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got.Image != "photo.png" || got.Analyzer != copymove.Kind {
				t.Errorf("header: got %q/%q", got.Image, got.Analyzer)
			}
			if !got.GeneratedAt.Equal(r.GeneratedAt) {
				t.Errorf("GeneratedAt: got %v, want %v", got.GeneratedAt, r.GeneratedAt)
			}
			if got.Confidence != r.Confidence {
				t.Errorf("Confidence: got %v, want %v", got.Confidence, r.Confidence)
			}
			if !reflect.DeepEqual(got.Matches, r.Matches) {
				t.Errorf("Matches: got %+v, want %+v", got.Matches, r.Matches)
			}
			if !reflect.DeepEqual(got.Excluded, r.Excluded) {
				t.Errorf("Excluded: got %v, want %v", got.Excluded, r.Excluded)
			}
			if got.Params.BlockSize != r.Params.BlockSize || got.Params.SimilarityThreshold != r.Params.SimilarityThreshold {
				t.Errorf("Params: got %+v", got.Params)
			}
			if got.Stats.Blocks != r.Stats.Blocks || got.Stats.RawMatches != r.Stats.RawMatches {
				t.Errorf("Stats: got %+v, want %+v", got.Stats, r.Stats)
			}
			if got.Stats.MatchTime != 0 {
				t.Errorf("stage timing written to report: %v", got.Stats.MatchTime)
			}
		})
	}
}

func TestWrite_YAMLKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := Write(FromResult("a.png", copymove.DefaultParams(), sampleResult(), nil), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"confidence:", "source_region:", "similarity_threshold:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("report missing key %q", key)
		}
	}
	if strings.Contains(string(data), "excluded:") {
		t.Error("empty exclusion list should be omitted")
	}
	if strings.Contains(string(data), "_time:") {
		t.Errorf("stage timings should not be written:\n%s", data)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := Write(FromResult("a.png", copymove.DefaultParams(), sampleResult(), nil), path); err == nil {
		t.Error("Write: expected error for .txt")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Error("Read: expected error for .txt")
	}
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(bad); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Read(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
