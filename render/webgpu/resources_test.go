package webgpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	endErr   error
	ended    int
	released int
}

func (e *fakeEncoder) SetPipeline(*wgpu.RenderPipeline)                              {}
func (e *fakeEncoder) SetBindGroup(uint32, *wgpu.BindGroup, []uint32)                {}
func (e *fakeEncoder) SetVertexBuffer(uint32, *wgpu.Buffer, uint64, uint64)          {}
func (e *fakeEncoder) SetIndexBuffer(*wgpu.Buffer, wgpu.IndexFormat, uint64, uint64) {}
func (e *fakeEncoder) Draw(uint32, uint32, uint32, uint32)                           {}
func (e *fakeEncoder) DrawIndexed(uint32, uint32, uint32, int32, uint32)             {}
func (e *fakeEncoder) End() error                                                    { e.ended++; return e.endErr }
func (e *fakeEncoder) Release()                                                      { e.released++ }

func TestEndViewPass_ReleasesEncoder(t *testing.T) {
	enc := &fakeEncoder{}
	b := &Backend{}

	require.NoError(t, b.EndViewPass(&renderPass{raw: enc}))
	assert.Equal(t, 1, enc.ended)
	assert.Equal(t, 1, enc.released)
}

func TestEndViewPass_ReturnsEndErrorAndStillReleases(t *testing.T) {
	boom := errors.New("validation: attachment size mismatch")
	enc := &fakeEncoder{endErr: boom}
	pass := &renderPass{raw: enc}
	b := &Backend{}

	err := b.EndViewPass(pass)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, enc.released)

	assert.ErrorIs(t, b.EndViewPass(pass), errPassEnded)
	assert.Equal(t, 1, enc.ended, "an ended pass is not ended twice")
}
