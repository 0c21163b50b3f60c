package swarm

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

// Window returns the glfw window backing the state.
func (s *WindowState) Window() *glfw.Window {
	return s.windowGlfw
}

// FramebufferSize is the drawable size in pixels, which differs from the
// window size on high density displays.
func (s *WindowState) FramebufferSize() (int, int) {
	return s.windowGlfw.GetFramebufferSize()
}

func (s *WindowState) AspectRatio() float32 {
	w, h := s.FramebufferSize()
	if h == 0 {
		return 1
	}
	return float32(w) / float32(h)
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	// glfw calls must stay on the main thread.
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // the surface comes from wgpu, not OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}
}

// PlatformWindowModule provides the shared WindowState resource and exits the
// app once the window is closed. Install is a no-op when a window exists.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	return &PlatformWindowModule{Width: width, Height: height, Title: title}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	if resource[WindowState](app) != nil {
		return
	}
	if m.Width <= 0 {
		m.Width = 1280
	}
	if m.Height <= 0 {
		m.Height = 720
	}
	if m.Title == "" {
		m.Title = "swarm"
	}

	ws := createWindowState(m.Width, m.Height, m.Title)
	cmd.AddResources(ws)
	app.OnShutdown(func() {
		ws.windowGlfw.Destroy()
		glfw.Terminate()
	})
	app.UseSystem(
		System(windowEventsSystem).
			InStage(Prelude).
			RunAlways(),
	)
}

func windowEventsSystem(ws *WindowState, cmd *Commands) {
	glfw.PollEvents()
	ws.WindowWidth, ws.WindowHeight = ws.windowGlfw.GetSize()
	if ws.windowGlfw.ShouldClose() {
		cmd.Exit()
	}
}
