package copymove

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// createNoiseImage creates a grayscale uniform-noise image from a fixed seed.
func createNoiseImage(t *testing.T, width, height int, seed int64) *image.RGBA {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(rng.Intn(256))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// createForgedImage creates a 300x300 noise image with the 64x64 patch at
// (10,10) pasted at (200,200).
func createForgedImage(t *testing.T) *image.RGBA {
	t.Helper()
	img := createNoiseImage(t, 300, 300, 42)
	src := image.Rect(10, 10, 74, 74)
	draw.Draw(img, image.Rect(200, 200, 264, 264), img, src.Min, draw.Src)
	return img
}

func TestNew_ParameterValidation(t *testing.T) {
	tests := []struct {
		name        string
		blockSize   int
		threshold   float64
		minDistance int
		wantErr     bool
	}{
		{"defaults", 16, 0.95, 50, false},
		{"threshold one", 8, 1.0, 0, false},
		{"zero threshold", 16, 0, 50, true},
		{"threshold above one", 16, 1.5, 50, true},
		{"negative threshold", 16, -0.2, 50, true},
		{"NaN threshold", 16, math.NaN(), 50, true},
		{"zero block size", 0, 0.9, 50, true},
		{"negative block size", -4, 0.9, 50, true},
		{"negative min distance", 16, 0.9, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := New(tt.blockSize, tt.threshold, tt.minDistance)
			if tt.wantErr {
				if !errors.Is(err, forensics.ErrInvalidParameter) {
					t.Errorf("expected ErrInvalidParameter, got %v", err)
				}
				if det != nil {
					t.Error("expected nil detector on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			p := det.Params()
			if p.BlockSize != tt.blockSize || p.SimilarityThreshold != tt.threshold || p.MinDistance != tt.minDistance {
				t.Errorf("params not applied: %+v", p)
			}
		})
	}
}

func TestNewWithParams_Invalid(t *testing.T) {
	mutations := map[string]func(*Params){
		"stride":            func(p *Params) { p.Stride = 0 },
		"coefficients":      func(p *Params) { p.Coefficients = 0 },
		"quant step":        func(p *Params) { p.QuantStep = 0 },
		"tiny quant step":   func(p *Params) { p.QuantStep = 1e-12 },
		"bucket prefix":     func(p *Params) { p.BucketPrefix = p.Coefficients + 1 },
		"search window":     func(p *Params) { p.SearchWindow = 0 },
		"cluster tolerance": func(p *Params) { p.ClusterTolerance = -1 },
		"min cluster size":  func(p *Params) { p.MinClusterSize = 0 },
		"workers":           func(p *Params) { p.Workers = -1 },
		"smoothing":         func(p *Params) { p.SmoothingSigma = -0.5 },
		"outline":           func(p *Params) { p.OutlineThickness = 0 },
		"variance":          func(p *Params) { p.VarianceThreshold = -1 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			if _, err := NewWithParams(p); !errors.Is(err, forensics.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestDetect_CopiedPatch(t *testing.T) {
	img := createForgedImage(t)
	det, err := New(16, 0.9, 50)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := det.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	srcPatch := image.Rect(10, 10, 74, 74)
	dstPatch := image.Rect(200, 200, 264, 264)
	found := false
	for _, m := range res.Matches {
		if m.Source.In(srcPatch) && m.Target.In(dstPatch) && m.Similarity >= 0.9 {
			found = true
			if m.Offset != image.Pt(190, 190) {
				t.Errorf("expected offset (190,190), got %v", m.Offset)
			}
			if !m.SourceRegion.Overlaps(srcPatch) || !m.TargetRegion.Overlaps(dstPatch) {
				t.Errorf("regions %v -> %v do not cover the patches", m.SourceRegion, m.TargetRegion)
			}
			if !m.Transform.IsTranslation(1e-6) {
				t.Errorf("expected a pure translation, got %+v", m.Transform)
			}
		}
	}
	if !found {
		t.Fatalf("no match from %v to %v in %+v", srcPatch, dstPatch, res.Matches)
	}

	if res.Confidence < 0.5 || res.Confidence > 1 {
		t.Errorf("expected high confidence, got %v", res.Confidence)
	}
	if len(res.Clusters) != len(res.Matches) {
		t.Errorf("clusters (%d) and matches (%d) not aligned", len(res.Clusters), len(res.Matches))
	}
	if res.Visualization.Bounds() != img.Bounds() {
		t.Errorf("overlay bounds %v, want %v", res.Visualization.Bounds(), img.Bounds())
	}
	if res.Kind() != Kind || res.Score() != res.Confidence {
		t.Errorf("forensics.Result accessors disagree with fields")
	}
}

func TestDetect_UniformNoise(t *testing.T) {
	img := createNoiseImage(t, 256, 256, 7)
	det, err := New(16, 0.95, 50)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := det.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("expected no clusters in noise, got %d", len(res.Matches))
	}
	if res.Confidence >= 0.1 {
		t.Errorf("expected confidence < 0.1, got %v", res.Confidence)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	img := createForgedImage(t)

	run := func(workers int) *Result {
		p := DefaultParams()
		p.SimilarityThreshold = 0.9
		p.Workers = workers
		det, err := NewWithParams(p)
		if err != nil {
			t.Fatalf("NewWithParams failed: %v", err)
		}
		res, err := det.Detect(context.Background(), img)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		return res
	}

	a, b, c := run(1), run(4), run(4)
	for _, other := range []*Result{b, c} {
		if !reflect.DeepEqual(a.Matches, other.Matches) {
			t.Errorf("matches differ between runs:\n%+v\n%+v", a.Matches, other.Matches)
		}
		if a.Confidence != other.Confidence {
			t.Errorf("confidence differs: %v vs %v", a.Confidence, other.Confidence)
		}
		if !reflect.DeepEqual(a.Visualization.Pix, other.Visualization.Pix) {
			t.Error("visualizations differ between runs")
		}
	}
}

func TestDetect_SerializedResultIsStable(t *testing.T) {
	img := createForgedImage(t)
	det, err := New(16, 0.9, 50)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	encode := func() []byte {
		res, err := det.Detect(context.Background(), img)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		data, err := json.Marshal(res)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		return data
	}

	a, b := encode(), encode()
	if !bytes.Equal(a, b) {
		t.Errorf("serialized results differ:\n%s\n%s", a, b)
	}
	if bytes.Contains(a, []byte("_time")) {
		t.Errorf("stage timings leaked into serialized result: %s", a)
	}
}

func TestDetect_MatchCountNeverGrowsWithThreshold(t *testing.T) {
	img := createForgedImage(t)

	prev := -1
	for _, threshold := range []float64{0.80, 0.85, 0.90, 0.92, 0.95, 0.97, 0.99, 1.0} {
		det, err := New(16, threshold, 50)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		res, err := det.Detect(context.Background(), img)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if prev >= 0 && len(res.Matches) > prev {
			t.Fatalf("threshold %.2f: match count grew from %d to %d", threshold, prev, len(res.Matches))
		}
		prev = len(res.Matches)
	}
}

func TestDetect_Smoothing(t *testing.T) {
	img := createForgedImage(t)
	p := DefaultParams()
	p.SimilarityThreshold = 0.9
	p.SmoothingSigma = 1.5
	det, err := NewWithParams(p)
	if err != nil {
		t.Fatalf("NewWithParams failed: %v", err)
	}

	res, err := det.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	found := false
	for _, m := range res.Matches {
		if m.Offset == image.Pt(190, 190) {
			found = true
		}
	}
	if !found {
		t.Fatalf("copied patch not found with smoothing: %+v", res.Matches)
	}
	if res.Confidence < 0.5 {
		t.Errorf("expected high confidence, got %v", res.Confidence)
	}
}

func TestDetect_MinDistanceSuppressesMatch(t *testing.T) {
	img := createForgedImage(t)
	// The patch moved by (190,190), about 268.7 pixels.
	det, err := New(16, 0.9, 300)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := det.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, cl := range res.Clusters {
		for _, m := range cl.Members {
			dx, dy := m.Offset()
			if dx*dx+dy*dy < 300*300 {
				t.Errorf("member %+v closer than min distance", m)
			}
		}
	}
	for _, m := range res.Matches {
		if m.Offset == image.Pt(190, 190) {
			t.Errorf("copied patch reported despite min distance: %+v", m)
		}
	}
}

func TestDetect_ExcludeRegions(t *testing.T) {
	img := createForgedImage(t)
	p := DefaultParams()
	p.SimilarityThreshold = 0.9
	p.ExcludeRegions = []image.Rectangle{image.Rect(190, 190, 280, 280)}
	det, err := NewWithParams(p)
	if err != nil {
		t.Fatalf("NewWithParams failed: %v", err)
	}

	res, err := det.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("expected no matches with the target excluded, got %+v", res.Matches)
	}
	if res.Stats.Excluded == 0 {
		t.Error("expected excluded blocks to be counted")
	}
}

func TestDetect_SubImageCoordinates(t *testing.T) {
	full := createForgedImage(t)
	sub := full.SubImage(image.Rect(5, 5, 295, 295))

	det, err := New(16, 0.9, 50)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := det.Detect(context.Background(), sub)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(res.Matches) == 0 {
		t.Fatal("expected the copied patch to be found")
	}
	m := res.Matches[0]
	if !m.Source.In(image.Rect(5, 5, 69, 69)) || !m.Target.In(image.Rect(195, 195, 259, 259)) {
		t.Errorf("coordinates not relative to the sub-image origin: %+v", m)
	}
	if res.Width != 290 || res.Height != 290 {
		t.Errorf("expected 290x290, got %dx%d", res.Width, res.Height)
	}
}

func TestDetect_DoesNotModifyInput(t *testing.T) {
	img := createForgedImage(t)
	before := append([]uint8(nil), img.Pix...)

	det, _ := New(16, 0.9, 50)
	if _, err := det.Detect(context.Background(), img); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !reflect.DeepEqual(before, img.Pix) {
		t.Error("Detect modified the input image")
	}
}

func TestDetect_Errors(t *testing.T) {
	det, err := New(16, 0.95, 50)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name string
		img  image.Image
	}{
		{"smaller than block", createNoiseImage(t, 10, 10, 1)},
		{"narrower than block", createNoiseImage(t, 15, 100, 1)},
		{"zero area", image.NewRGBA(image.Rect(0, 0, 0, 0))},
		{"nil image", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := det.Detect(context.Background(), tt.img)
			if !errors.Is(err, forensics.ErrAnalysis) {
				t.Errorf("expected ErrAnalysis, got %v", err)
			}
		})
	}
}

func TestDetect_BlockEqualsImage(t *testing.T) {
	det, _ := New(16, 0.95, 0)
	res, err := det.Detect(context.Background(), createNoiseImage(t, 16, 16, 3))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.Stats.Blocks != 1 || len(res.Matches) != 0 {
		t.Errorf("expected a single block and no matches, got %+v", res.Stats)
	}
}

func TestDetect_SinglePixelBlocks(t *testing.T) {
	det, err := New(1, 0.95, 5)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := det.Detect(context.Background(), createNoiseImage(t, 20, 20, 3))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.Stats.Described != 0 || len(res.Matches) != 0 {
		t.Errorf("single-pixel blocks carry no texture, got %+v", res.Stats)
	}
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	det, _ := New(16, 0.95, 50)
	_, err := det.Detect(ctx, createNoiseImage(t, 64, 64, 1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDetect_DeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	p := DefaultParams()
	p.Workers = 4
	det, _ := NewWithParams(p)
	_, err := det.Detect(ctx, createNoiseImage(t, 256, 256, 5))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if errors.Is(err, forensics.ErrAnalysis) {
		t.Errorf("context errors should not be reported as analysis failures: %v", err)
	}
}

func TestAnalyze_Interface(t *testing.T) {
	var a forensics.Analyzer
	det, _ := New(16, 0.9, 50)
	a = det

	if a.Name() != "copy-move" {
		t.Errorf("expected name copy-move, got %q", a.Name())
	}
	res, err := a.Analyze(context.Background(), createForgedImage(t))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Score() <= 0 {
		t.Errorf("expected positive score, got %v", res.Score())
	}
	if res.Overlay() == nil {
		t.Error("expected an overlay")
	}
}

func TestResult_Save(t *testing.T) {
	det, _ := New(16, 0.9, 50)
	res, err := det.Detect(context.Background(), createForgedImage(t))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	path := t.TempDir() + "/overlay.png"
	if err := res.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}
