//go:build !windows

package inject

func (e *Engine) VirtualDesktop() Rect { return Rect{} }

func (e *Engine) ForegroundRect() (Rect, error) {
	return Rect{}, ErrUnsupportedPlatform
}

func (e *Engine) ClientRectAt(x, y int) (ClientRectInfo, error) {
	return ClientRectInfo{}, ErrUnsupportedPlatform
}

func (e *Engine) InjectAt(x, y int, text, html string) error {
	return ErrUnsupportedPlatform
}

func (e *Engine) PasteAtCaret(text, html string) error {
	return ErrUnsupportedPlatform
}

func (e *Engine) HasTextSelection() (bool, error) {
	return false, ErrUnsupportedPlatform
}
