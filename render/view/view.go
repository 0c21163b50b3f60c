package view

import (
	"github.com/gekko3d/swarm/render"
	"github.com/go-gl/mathgl/mgl32"
)

// ExtractedView is a camera as seen by the render world.
type ExtractedView struct {
	Entity     render.Entity
	MainEntity render.MainEntity

	ViewFromWorld mgl32.Mat4
	ClipFromView  mgl32.Mat4
	WorldPosition mgl32.Vec3

	HDR         bool
	MsaaSamples uint32
}

func (v *ExtractedView) ClipFromWorld() mgl32.Mat4 {
	return v.ClipFromView.Mul4(v.ViewFromWorld)
}

func (v *ExtractedView) Rangefinder() Rangefinder {
	return Rangefinder{viewFromWorld: v.ViewFromWorld}
}

// Rangefinder measures how far things are along the view axis.
type Rangefinder struct {
	viewFromWorld mgl32.Mat4
}

func NewRangefinder(viewFromWorld mgl32.Mat4) Rangefinder {
	return Rangefinder{viewFromWorld: viewFromWorld}
}

// DistanceTranslation is the view-space z of a world-space point. The camera
// looks down -z, so farther points have smaller values.
func (r Rangefinder) DistanceTranslation(p mgl32.Vec3) float32 {
	row := r.viewFromWorld.Row(2)
	return row[0]*p[0] + row[1]*p[1] + row[2]*p[2] + row[3]
}
