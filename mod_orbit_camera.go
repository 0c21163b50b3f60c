package swarm

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCameraModule circles cameras carrying OrbitCameraComponent around
// their target. With a window installed it keeps camera aspect ratios in step
// with the framebuffer, and with InputModule installed the orbit follows the
// mouse: left drag turns, scroll zooms, space pauses, escape quits.
type OrbitCameraModule struct{}

func (m OrbitCameraModule) Install(app *App, cmd *Commands) {
	if resource[Input](app) != nil {
		app.UseSystem(
			System(OrbitCameraInputSystem).
				InStage(Update).
				RunAlways(),
		)
	}
	app.UseSystem(
		System(OrbitCameraControlSystem).
			InStage(Update).
			RunAlways(),
	)
	if resource[WindowState](app) != nil {
		app.UseSystem(
			System(cameraAspectSystem).
				InStage(PostUpdate).
				RunAlways(),
		)
	}
}

type OrbitCameraComponent struct {
	Target mgl32.Vec3
	Radius float32
	// Height is the camera elevation above the target plane.
	Height float32
	// Speed is the angular speed in degrees per second.
	Speed  float32
	Paused bool

	// Drag is the mouse movement to apply this frame, in pixels.
	Drag mgl32.Vec2
	// Zoom is the scroll to apply this frame, in wheel steps.
	Zoom float32
}

const (
	orbitDragDegreesPerPixel = 0.25
	orbitZoomStep            = 0.9
	orbitMinRadius           = 0.5
)

func OrbitCameraInputSystem(input *Input, cmd *Commands) {
	if input.JustPressed[KeyEscape] {
		cmd.Exit()
		return
	}

	MakeQuery1[OrbitCameraComponent](cmd).Map(func(eid EntityId, orbit *OrbitCameraComponent) bool {
		if input.JustPressed[KeySpace] {
			orbit.Paused = !orbit.Paused
		}
		orbit.Drag = mgl32.Vec2{}
		if input.Pressed[MouseButtonLeft] {
			orbit.Drag = mgl32.Vec2{float32(input.MouseDeltaX), float32(input.MouseDeltaY)}
		}
		orbit.Zoom = float32(input.Scroll)
		return true
	})
}

func OrbitCameraControlSystem(cmd *Commands, time *Time) {
	dt := time.Seconds()

	MakeQuery2[CameraComponent, OrbitCameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, orbit *OrbitCameraComponent) bool {
		if orbit.Radius == 0 {
			orbit.Radius = 10
		}
		if orbit.Zoom != 0 {
			scale := float32(math.Pow(orbitZoomStep, float64(orbit.Zoom)))
			orbit.Radius = max(orbit.Radius*scale, orbitMinRadius)
			orbit.Height *= scale
			orbit.Zoom = 0
		}

		yaw := cam.Yaw - orbit.Drag[0]*orbitDragDegreesPerPixel
		if !orbit.Paused {
			yaw += orbit.Speed * dt
		}
		cam.Yaw = float32(math.Mod(float64(yaw), 360))
		orbit.Height += orbit.Drag[1] * orbitDragDegreesPerPixel * orbit.Radius / 45
		orbit.Drag = mgl32.Vec2{}

		yawRad := float64(mgl32.DegToRad(cam.Yaw))
		cam.Position = orbit.Target.Add(mgl32.Vec3{
			orbit.Radius * float32(math.Sin(yawRad)),
			orbit.Height,
			orbit.Radius * float32(math.Cos(yawRad)),
		})
		cam.LookAt = orbit.Target
		cam.Up = mgl32.Vec3{0, 1, 0}

		toTarget := orbit.Target.Sub(cam.Position)
		if l := toTarget.Len(); l > 0 {
			cam.Pitch = mgl32.RadToDeg(float32(math.Asin(float64(toTarget.Y() / l))))
		}
		return true
	})
}

func cameraAspectSystem(cmd *Commands, ws *WindowState) {
	aspect := ws.AspectRatio()
	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent) bool {
		cam.Aspect = aspect
		return true
	})
}
