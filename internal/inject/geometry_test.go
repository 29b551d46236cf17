package inject

import "testing"

func TestRectContains(t *testing.T) {
	r := Rect{X: -100, Y: -50, Width: 1920, Height: 1080}
	if !r.Contains(-100, -50) {
		t.Error("expected top-left corner to be contained")
	}
	if r.Contains(1820, -50) {
		t.Error("right bound is exclusive, should not be contained")
	}
	if r.Contains(-101, 0) {
		t.Error("point left of origin should not be contained")
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	b := Rect{X: 50, Y: 50, Width: 100, Height: 100}
	c := Rect{X: 200, Y: 200, Width: 10, Height: 10}

	if !a.Intersects(b) {
		t.Error("expected overlapping rects to intersect")
	}
	if a.Intersects(c) {
		t.Error("expected disjoint rects to not intersect")
	}
}

func TestClampPointInsideBoundsUnchanged(t *testing.T) {
	bounds := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	x, y := ClampPoint(500, 500, bounds)
	if x != 500 || y != 500 {
		t.Errorf("got (%d, %d), want (500, 500)", x, y)
	}
}

func TestClampPointNegativeQuadrant(t *testing.T) {
	// A monitor to the left of primary, reporting negative X.
	bounds := Rect{X: -1920, Y: 0, Width: 1920, Height: 1080}
	x, y := ClampPoint(-5000, 2000, bounds)
	if x != -1920 {
		t.Errorf("x = %d, want clamped to -1920", x)
	}
	if y != 1079 {
		t.Errorf("y = %d, want clamped to 1079", y)
	}
}

func TestClampPointZeroBoundsIsNoop(t *testing.T) {
	x, y := ClampPoint(10, 10, Rect{})
	if x != 10 || y != 10 {
		t.Errorf("expected passthrough for a degenerate bounds rect, got (%d, %d)", x, y)
	}
}

func TestSafeOffsetKeepsWindowOnPrimary(t *testing.T) {
	primary := Rect{X: 0, Y: 0, Width: 1920, Height: 1080}
	stranded := Rect{X: -3000, Y: -3000, Width: 800, Height: 600}

	got := SafeOffset(stranded, primary, 40)
	if got.X < primary.X || got.Right() > primary.Right() {
		t.Errorf("result rect X range [%d, %d) escapes primary [%d, %d)", got.X, got.Right(), primary.X, primary.Right())
	}
	if got.Y < primary.Y || got.Bottom() > primary.Bottom() {
		t.Errorf("result rect Y range [%d, %d) escapes primary [%d, %d)", got.Y, got.Bottom(), primary.Y, primary.Bottom())
	}
	if got.Width != stranded.Width || got.Height != stranded.Height {
		t.Error("SafeOffset must preserve the window's size")
	}
}
