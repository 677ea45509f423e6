package otpkeeper

import (
	"context"
	"time"
)

// Clipboard places text on the system clipboard. When clearAfter is
// positive the implementation removes the text after that delay, unless
// the clipboard changed in the meantime.
type Clipboard interface {
	Copy(ctx context.Context, text string, clearAfter time.Duration) error
}

// ScreenCapturer returns one encoded image per display.
type ScreenCapturer interface {
	CaptureScreens(ctx context.Context) ([][]byte, error)
}
