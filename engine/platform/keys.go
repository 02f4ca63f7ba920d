package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/yumekawa-dev/kanade/engine/core"
)

var keyTable = map[glfw.Key]core.KeyCode{
	glfw.KeyBackspace: core.KEY_BACKSPACE,
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyLeftShift: core.KEY_SHIFT,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyA:         core.KEY_A,
	glfw.KeyB:         core.KEY_B,
	glfw.KeyC:         core.KEY_C,
	glfw.KeyD:         core.KEY_D,
	glfw.KeyE:         core.KEY_E,
	glfw.KeyF:         core.KEY_F,
	glfw.KeyG:         core.KEY_G,
	glfw.KeyH:         core.KEY_H,
	glfw.KeyI:         core.KEY_I,
	glfw.KeyJ:         core.KEY_J,
	glfw.KeyK:         core.KEY_K,
	glfw.KeyL:         core.KEY_L,
	glfw.KeyM:         core.KEY_M,
	glfw.KeyN:         core.KEY_N,
	glfw.KeyO:         core.KEY_O,
	glfw.KeyP:         core.KEY_P,
	glfw.KeyQ:         core.KEY_Q,
	glfw.KeyR:         core.KEY_R,
	glfw.KeyS:         core.KEY_S,
	glfw.KeyT:         core.KEY_T,
	glfw.KeyU:         core.KEY_U,
	glfw.KeyV:         core.KEY_V,
	glfw.KeyW:         core.KEY_W,
	glfw.KeyX:         core.KEY_X,
	glfw.KeyY:         core.KEY_Y,
	glfw.KeyZ:         core.KEY_Z,
}

func translateKey(key glfw.Key) (core.KeyCode, bool) {
	code, ok := keyTable[key]
	return code, ok
}

// KeyCodeForLetter maps a configured single-letter binding to its key code.
func KeyCodeForLetter(letter byte) (core.KeyCode, bool) {
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return 0, false
	}
	return core.KEY_A + core.KeyCode(letter-'A'), true
}
