package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyN     = 78  // N key (ASCII), next scene
	KeyP     = 80  // P key (ASCII), previous scene
	KeyR     = 82  // R key (ASCII), refit camera
	KeyU     = 85  // U key (ASCII), user camera
	KeySpace = 32  // Spacebar (ASCII)
	KeyEsc   = 256 // Escape key (GLFW)

	KeyPageUp   = 266 // Page Up (GLFW)
	KeyPageDown = 267 // Page Down (GLFW)

	Key0 = 48 // 0 key (ASCII)
	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)
