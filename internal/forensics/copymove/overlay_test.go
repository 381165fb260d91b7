package copymove

import (
	"image"
	"reflect"
	"testing"

	"github.com/disintegration/imaging"
)

func TestRenderOverlay_NoMatchesIsCopy(t *testing.T) {
	img := createNoiseImage(t, 40, 30, 5)
	out := renderOverlay(img, nil, 2)

	want := imaging.Clone(img)
	if out.Bounds() != want.Bounds() {
		t.Fatalf("expected bounds %v, got %v", want.Bounds(), out.Bounds())
	}
	if !reflect.DeepEqual(out.Pix, want.Pix) {
		t.Error("overlay without matches should equal the input")
	}
	if &out.Pix[0] == &img.Pix[0] {
		t.Error("overlay must not share the input buffer")
	}
}

func TestRenderOverlay_DrawsOutlines(t *testing.T) {
	img := createNoiseImage(t, 120, 120, 5)
	m := Match{
		Source:       image.Pt(20, 30),
		Target:       image.Pt(90, 90),
		SourceRegion: image.Rect(10, 20, 30, 40),
		TargetRegion: image.Rect(80, 80, 100, 100),
	}
	out := renderOverlay(img, []Match{m}, 2)
	c := clusterColor(0)

	for _, p := range []image.Point{
		{10, 20}, {29, 39}, {11, 30}, // source outline
		{80, 80}, {99, 99}, {98, 90}, // target outline
		{20, 30}, {90, 90}, // line endpoints
	} {
		if got := out.NRGBAAt(p.X, p.Y); got != c {
			t.Errorf("pixel %v: expected %v, got %v", p, c, got)
		}
	}
	// Interior pixel away from the outline and the line is untouched.
	if out.NRGBAAt(88, 95) != imaging.Clone(img).NRGBAAt(88, 95) {
		t.Error("interior pixel modified")
	}
}

func TestClusterColor_Distinct(t *testing.T) {
	seen := make(map[[3]uint8]bool)
	for i := 0; i < 12; i++ {
		c := clusterColor(i)
		key := [3]uint8{c.R, c.G, c.B}
		if seen[key] {
			t.Errorf("color %d repeats an earlier color", i)
		}
		seen[key] = true
		if c.A != 255 {
			t.Errorf("color %d not opaque", i)
		}
	}
}

func TestDrawLine_Endpoints(t *testing.T) {
	img := imaging.New(50, 50, image.Black.C)
	c := clusterColor(3)
	drawLine(img, image.Pt(45, 5), image.Pt(3, 40), c)
	if img.NRGBAAt(45, 5) != c || img.NRGBAAt(3, 40) != c {
		t.Error("line endpoints not drawn")
	}
	// Endpoints outside the image are clipped.
	drawLine(img, image.Pt(-10, -10), image.Pt(60, 60), c)
	if img.NRGBAAt(25, 25) != c {
		t.Error("diagonal line not drawn")
	}
}
