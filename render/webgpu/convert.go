package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/swarm/render/gpu"
)

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	// gpu.BufferUsage shares the WebGPU bit values.
	return wgpu.BufferUsage(u)
}

func indexFormat(f gpu.IndexFormat) wgpu.IndexFormat {
	if f == gpu.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func vertexFormat(f gpu.VertexFormat) (wgpu.VertexFormat, error) {
	switch f {
	case gpu.VertexFormatFloat32:
		return wgpu.VertexFormatFloat32, nil
	case gpu.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2, nil
	case gpu.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3, nil
	case gpu.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4, nil
	case gpu.VertexFormatUint32:
		return wgpu.VertexFormatUint32, nil
	}
	return 0, fmt.Errorf("webgpu: unsupported vertex format %s", f)
}

func vertexStepMode(m gpu.VertexStepMode) wgpu.VertexStepMode {
	if m == gpu.VertexStepModeInstance {
		return wgpu.VertexStepModeInstance
	}
	return wgpu.VertexStepModeVertex
}

func vertexBufferLayouts(layouts []gpu.VertexBufferLayout) ([]wgpu.VertexBufferLayout, error) {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			format, err := vertexFormat(a.Format)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         format,
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    vertexStepMode(l.StepMode),
			Attributes:  attrs,
		})
	}
	return out, nil
}

func primitiveTopology(t gpu.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	case gpu.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gpu.PrimitiveTopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gpu.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, error) {
	switch f {
	case gpu.TextureFormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb, nil
	case gpu.TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb, nil
	case gpu.TextureFormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float, nil
	case gpu.TextureFormatDepth32Float:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("webgpu: unsupported texture format %d", f)
}

// surfaceFormat picks the first sRGB format the surface supports.
func surfaceFormat(formats []wgpu.TextureFormat) (wgpu.TextureFormat, gpu.TextureFormat, error) {
	for _, f := range formats {
		switch f {
		case wgpu.TextureFormatBGRA8UnormSrgb:
			return f, gpu.TextureFormatBGRA8UnormSrgb, nil
		case wgpu.TextureFormatRGBA8UnormSrgb:
			return f, gpu.TextureFormatRGBA8UnormSrgb, nil
		}
	}
	return wgpu.TextureFormatUndefined, gpu.TextureFormatUndefined, fmt.Errorf("webgpu: surface offers no sRGB format (%d formats)", len(formats))
}

func compareFunction(c gpu.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gpu.CompareLess:
		return wgpu.CompareFunctionLess
	case gpu.CompareGreater:
		return wgpu.CompareFunctionGreater
	case gpu.CompareAlways:
		return wgpu.CompareFunctionAlways
	}
	return wgpu.CompareFunctionLessEqual
}

func blendState(b gpu.BlendMode) *wgpu.BlendState {
	if b != gpu.BlendAlpha {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
	}
}
