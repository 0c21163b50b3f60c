package mesh

import (
	"math"

	"github.com/gekko3d/swarm/render/gpu"
)

// UVSphere builds a latitude/longitude sphere. Very low sector and stack
// counts give the cheap, blocky particles used for large instance counts.
func UVSphere(radius float32, sectors, stacks int) *Mesh {
	sectors = max(sectors, 2)
	stacks = max(stacks, 2)

	sectorStep := 2 * math.Pi / float64(sectors)
	stackStep := math.Pi / float64(stacks)
	inv := 1 / radius

	m := &Mesh{Topology: gpu.PrimitiveTopologyTriangleList}
	for i := 0; i <= stacks; i++ {
		stackAngle := math.Pi/2 - float64(i)*stackStep
		xy := float64(radius) * math.Cos(stackAngle)
		z := float32(float64(radius) * math.Sin(stackAngle))

		for j := 0; j <= sectors; j++ {
			sectorAngle := float64(j) * sectorStep
			x := float32(xy * math.Cos(sectorAngle))
			y := float32(xy * math.Sin(sectorAngle))

			m.Positions = append(m.Positions, [3]float32{x, y, z})
			m.Normals = append(m.Normals, [3]float32{x * inv, y * inv, z * inv})
			m.UVs = append(m.UVs, [2]float32{float32(j) / float32(sectors), float32(i) / float32(stacks)})
		}
	}

	for i := 0; i < stacks; i++ {
		k1 := uint32(i * (sectors + 1))
		k2 := k1 + uint32(sectors) + 1
		for j := 0; j < sectors; j++ {
			if i != 0 {
				m.Indices32 = append(m.Indices32, k1, k2, k1+1)
			}
			if i != stacks-1 {
				m.Indices32 = append(m.Indices32, k1+1, k2, k2+1)
			}
			k1++
			k2++
		}
	}
	return m
}
