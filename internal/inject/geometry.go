// Package inject places report text into a foreign window at a screen
// point: it clamps the target point to the virtual desktop, repairs and
// foregrounds the destination window, then stages and pastes the payload
// through the OS clipboard.
package inject

// Rect is a screen rectangle in virtual-desktop coordinates. Origin can be
// negative — a monitor to the left of or above the primary one reports
// negative X/Y, which is why every clamp here works on signed ints rather
// than assuming an origin at zero.
type Rect struct {
	X, Y, Width, Height int
}

// Right and Bottom are exclusive bounds.
func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Contains reports whether the point lies within r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersects reports whether r and other share any area.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.Right() && other.X < r.Right() &&
		r.Y < other.Bottom() && other.Y < r.Bottom()
}

// ClampPoint pins (x, y) to the closest point still inside bounds. Used to
// keep an injection target point on-screen when the caller-supplied
// coordinate came from a monitor that has since been unplugged or a stale
// cached position.
func ClampPoint(x, y int, bounds Rect) (int, int) {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return x, y
	}
	cx, cy := x, y
	if cx < bounds.X {
		cx = bounds.X
	}
	if cx >= bounds.Right() {
		cx = bounds.Right() - 1
	}
	if cy < bounds.Y {
		cy = bounds.Y
	}
	if cy >= bounds.Bottom() {
		cy = bounds.Bottom() - 1
	}
	return cx, cy
}

// SafeOffset returns a position for rect translated fully inside primary so
// that a window stranded on a now-missing monitor becomes reachable again.
// It preserves rect's size and anchors its top-left just inside primary's
// top-left corner, offset slightly so repeated calls don't perfectly stack
// windows on top of each other.
func SafeOffset(rect, primary Rect, nudge int) Rect {
	x := primary.X + nudge
	y := primary.Y + nudge
	if rect.Width > 0 && x+rect.Width > primary.Right() {
		x = primary.Right() - rect.Width
	}
	if rect.Height > 0 && y+rect.Height > primary.Bottom() {
		y = primary.Bottom() - rect.Height
	}
	return Rect{X: x, Y: y, Width: rect.Width, Height: rect.Height}
}
