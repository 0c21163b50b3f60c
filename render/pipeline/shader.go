package pipeline

import (
	_ "embed"
	"fmt"

	"github.com/gekko3d/swarm/render/gpu"
	"github.com/gogpu/naga"
)

//go:embed shaders/instancing.wgsl
var InstancingWGSL string

//go:embed shaders/mesh.wgsl
var MeshWGSL string

var (
	InstancingShader = gpu.ShaderRef{Label: "instancing", Source: InstancingWGSL}
	MeshShader       = gpu.ShaderRef{Label: "mesh", Source: MeshWGSL}
)

const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// ValidateShader compiles the WGSL source offline so a broken shader is
// reported when the renderer is installed rather than on the first draw.
func ValidateShader(ref gpu.ShaderRef) error {
	if _, err := naga.Compile(ref.Source); err != nil {
		return fmt.Errorf("shader %q: %w", ref.Label, err)
	}
	return nil
}
