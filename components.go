package swarm

import (
	"github.com/gekko3d/swarm/render/instance"
	"github.com/gekko3d/swarm/render/mesh"
	"github.com/go-gl/mathgl/mgl32"
)

type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// Matrix returns the world-from-local matrix.
func (t *TransformComponent) Matrix() mgl32.Mat4 {
	scale := t.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	rot := t.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// CameraComponent turns an entity into a view. Fov is in radians.
type CameraComponent struct {
	Position mgl32.Vec3
	LookAt   mgl32.Vec3
	Up       mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Fov      float32
	Aspect   float32
	Near     float32
	Far      float32

	HDR         bool
	MsaaSamples uint32
}

func (c *CameraComponent) ViewMatrix() mgl32.Mat4 {
	up := c.Up
	if up == (mgl32.Vec3{}) {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.LookAt, up)
}

// depthRemap maps OpenGL clip depth [-1, 1] onto the WebGPU range [0, 1].
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// ProjectionMatrix is a right-handed perspective with a [0, 1] depth range.
func (c *CameraComponent) ProjectionMatrix() mgl32.Mat4 {
	return depthRemap.Mul4(mgl32.Perspective(c.Fov, c.Aspect, c.Near, c.Far))
}

// Mesh3d points an entity at a mesh asset.
type Mesh3d struct {
	Mesh mesh.Id
}

// InstanceMaterialData is the per-instance data drawn with the entity's mesh.
// The mesh is drawn once per record, at the record's position.
type InstanceMaterialData struct {
	Group instance.Group
}
