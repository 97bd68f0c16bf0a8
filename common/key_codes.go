package common

// Virtual key codes delivered by window key callbacks.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA     = 65 // orbit left
	KeyD     = 68 // orbit right
	KeyW     = 87 // orbit up
	KeyS     = 83 // orbit down
	KeyQ     = 81 // pan down
	KeyE     = 69 // pan up
	KeyF     = 70 // save the current frame
	KeyP     = 80 // pause or resume rendering
	KeyR     = 82 // re-frame the scene bounds
	KeySpace = 32 // toggle turntable

	KeyMinus = 45 // zoom out
	KeyEqual = 61 // zoom in

	Key1 = 49
	Key2 = 50
	Key3 = 51
)

// Non-printable keys.
const (
	KeyEsc       = 256
	KeyBackspace = 259
	KeyRight     = 262
	KeyLeft      = 263
	KeyDown      = 264
	KeyUp        = 265
	KeyLeftShift = 340
)
