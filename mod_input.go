package swarm

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

type Key int

const (
	KeySpace Key = iota
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyR
	MouseButtonLeft
	MouseButtonRight
	keyCount
)

var keyToGlfw = map[Key]glfw.Key{
	KeySpace:  glfw.KeySpace,
	KeyEscape: glfw.KeyEscape,
	KeyLeft:   glfw.KeyLeft,
	KeyRight:  glfw.KeyRight,
	KeyUp:     glfw.KeyUp,
	KeyDown:   glfw.KeyDown,
	KeyR:      glfw.KeyR,
}

var buttonToGlfw = map[Key]glfw.MouseButton{
	MouseButtonLeft:  glfw.MouseButtonLeft,
	MouseButtonRight: glfw.MouseButtonRight,
}

// Input is the keyboard and mouse state sampled at the start of the frame.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	// Scroll is the wheel movement since the previous frame.
	Scroll float64

	scrollAccum float64
}

// update records the new state of key k.
func (input *Input) update(k Key, down bool) {
	input.JustPressed[k] = down && !input.Pressed[k]
	input.JustReleased[k] = !down && input.Pressed[k]
	input.Pressed[k] = down
}

// InputModule samples the shared window. It needs PlatformWindowModule.
type InputModule struct{}

func (mod InputModule) Install(app *App, cmd *Commands) {
	ws := resource[WindowState](app)
	if ws == nil {
		panic("InputModule requires PlatformWindowModule")
	}
	input := &Input{}
	ws.windowGlfw.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		input.scrollAccum += yoff
	})
	input.MouseX, input.MouseY = ws.windowGlfw.GetCursorPos()
	cmd.AddResources(input)
	app.UseSystem(
		System(inputSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

// inputSystem runs after the window has polled its events in Prelude.
func inputSystem(s *WindowState, input *Input) {
	for key, glfwKey := range keyToGlfw {
		input.update(key, s.windowGlfw.GetKey(glfwKey) == glfw.Press)
	}
	for btn, glfwBtn := range buttonToGlfw {
		input.update(btn, s.windowGlfw.GetMouseButton(glfwBtn) == glfw.Press)
	}

	mx, my := s.windowGlfw.GetCursorPos()
	input.MouseDeltaX = mx - input.MouseX
	input.MouseDeltaY = my - input.MouseY
	input.MouseX, input.MouseY = mx, my

	input.Scroll = input.scrollAccum
	input.scrollAccum = 0
}
