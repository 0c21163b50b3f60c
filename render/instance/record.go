package instance

import (
	"encoding/binary"
	"math"
	"slices"
)

// RecordSize is the stride of one record in the instance buffer.
const RecordSize = 32

// Record is one instance as seen by the shader: location 3 reads
// vec4(Position, Scale), location 4 reads Color.
//
//	[0,12)  position xyz
//	[12,16) scale
//	[16,32) color rgba
type Record struct {
	Position [3]float32
	Scale    float32
	Color    [4]float32
}

// Group is the ordered set of instances drawn by one entity.
type Group []Record

// ByteSize is the exact GPU buffer size needed for the group.
func (g Group) ByteSize() uint64 {
	return uint64(len(g)) * RecordSize
}

// PutRecord writes r into dst[0:32].
func PutRecord(dst []byte, r Record) {
	_ = dst[RecordSize-1]
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(r.Position[0]))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(r.Position[1]))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(r.Position[2]))
	binary.LittleEndian.PutUint32(dst[12:], math.Float32bits(r.Scale))
	binary.LittleEndian.PutUint32(dst[16:], math.Float32bits(r.Color[0]))
	binary.LittleEndian.PutUint32(dst[20:], math.Float32bits(r.Color[1]))
	binary.LittleEndian.PutUint32(dst[24:], math.Float32bits(r.Color[2]))
	binary.LittleEndian.PutUint32(dst[28:], math.Float32bits(r.Color[3]))
}

// ReadRecord is the inverse of PutRecord.
func ReadRecord(src []byte) Record {
	posScale, color := ReadAttributes(src)
	return Record{
		Position: [3]float32{posScale[0], posScale[1], posScale[2]},
		Scale:    posScale[3],
		Color:    color,
	}
}

// ReadAttributes decodes a record the way the vertex stage fetches it: two
// Float32x4 attributes at offsets 0 and 16.
func ReadAttributes(src []byte) (posScale [4]float32, color [4]float32) {
	_ = src[RecordSize-1]
	for i := 0; i < 4; i++ {
		posScale[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		color[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[16+i*4:]))
	}
	return posScale, color
}

// AppendGroup appends the packed bytes of g to dst.
func AppendGroup(dst []byte, g Group) []byte {
	start := len(dst)
	dst = slices.Grow(dst, len(g)*RecordSize)[:start+len(g)*RecordSize]
	encodeRange(dst[start:], g)
	return dst
}

func encodeRange(dst []byte, g Group) {
	for i, r := range g {
		PutRecord(dst[i*RecordSize:], r)
	}
}
