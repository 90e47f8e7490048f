package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width.Store(int32(width))
		}
		if height > 0 {
			w.height.Store(int32(height))
		}
	}
}

// WithSizeLimits bounds interactive resizing. A bound of 0 or less is left unset.
//
// Parameters:
//   - minWidth, minHeight: smallest allowed size in pixels
//   - maxWidth, maxHeight: largest allowed size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.minWidth = minWidth
		w.minHeight = minHeight
		w.maxWidth = maxWidth
		w.maxHeight = maxHeight
	}
}
