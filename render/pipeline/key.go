package pipeline

import (
	"fmt"
	"math/bits"

	"github.com/gekko3d/swarm/render/gpu"
)

// Key selects a pipeline variant. Layout:
//
//	bit 0     HDR target
//	bits 1-3  log2(MSAA sample count)
//	bits 4-6  primitive topology
type Key uint32

const (
	KeyNone Key = 0
	KeyHDR  Key = 1 << 0

	keyMsaaShift     = 1
	keyMsaaMask      = 0b111
	keyTopologyShift = 4
	keyTopologyMask  = 0b111
)

// ValidMsaaSamples reports whether every WebGPU device accepts n samples
// per pixel for render attachments.
func ValidMsaaSamples(n uint32) bool {
	return n == 1 || n == 4
}

// KeyFromMsaaSamples encodes a power-of-two sample count. Zero is treated as
// one. Other counts do not round-trip; check them with ValidMsaaSamples.
func KeyFromMsaaSamples(samples uint32) Key {
	if samples <= 1 {
		return KeyNone
	}
	return Key(uint32(bits.TrailingZeros32(samples))&keyMsaaMask) << keyMsaaShift
}

func KeyFromHDR(hdr bool) Key {
	if hdr {
		return KeyHDR
	}
	return KeyNone
}

func KeyFromPrimitiveTopology(t gpu.PrimitiveTopology) Key {
	return Key(uint32(t)&keyTopologyMask) << keyTopologyShift
}

func (k Key) MsaaSamples() uint32 {
	return 1 << ((uint32(k) >> keyMsaaShift) & keyMsaaMask)
}

func (k Key) HDR() bool {
	return k&KeyHDR != 0
}

func (k Key) PrimitiveTopology() gpu.PrimitiveTopology {
	return gpu.PrimitiveTopology((uint32(k) >> keyTopologyShift) & keyTopologyMask)
}

func (k Key) String() string {
	return fmt.Sprintf("msaa=%d hdr=%t topology=%s", k.MsaaSamples(), k.HDR(), k.PrimitiveTopology())
}
