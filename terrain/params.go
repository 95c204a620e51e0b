package terrain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// UpdateParams is the parameter block shared by the Creation, Update and
// Flow-Update stages. Field order and padding match the WGSL uniform.
type UpdateParams struct {
	WorldMin        [2]float32
	WorldRange      [2]float32
	WidthPixels     uint32
	InvWidthPixels  float32
	RangePerPixel   float32
	FlowSpeedFactor float32
	Time            float32
	DeltaT          float32
	Rain            float32
	Evaporation     float32
	Seepage         float32
	FlowRate        float32
	InitialWater    float32
	HeightScale     float32
	// NeighborMask has bit i set when neighbor slot i is linked.
	NeighborMask uint32
	Seed         uint32
	// WorldMinLo is the float32 rounding residual of WorldMin, so hosts can
	// rebuild the tile origin exactly far from the world origin.
	WorldMinLo [2]float32
}

// DrawParams is the per-draw parameter block of the Render stage.
type DrawParams struct {
	// WorldMin and InvWorldRange map world space onto the view rectangle.
	WorldMin      [2]float32
	InvWorldRange [2]float32
	Min           [2]float32
	Range         [2]float32
	SegmentCount  uint32
	Time          float32
	DeltaT        float32
	HeightScale   float32
	InvScreenSize [2]float32
	_             [2]uint32
}

var (
	updateParamsSize = binary.Size(UpdateParams{})
	drawParamsSize   = binary.Size(DrawParams{})
)

func encodeParams(v any) []byte {
	var buf bytes.Buffer
	// Fixed-size structs never fail to encode.
	_ = binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// Bytes encodes the block little-endian.
func (p UpdateParams) Bytes() []byte { return encodeParams(p) }

// Bytes encodes the block little-endian.
func (p DrawParams) Bytes() []byte { return encodeParams(p) }

func decodeUpdateParams(b []byte) (UpdateParams, error) {
	var p UpdateParams
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &p); err != nil {
		return p, fmt.Errorf("decoding update params: %w", err)
	}
	return p, nil
}

func decodeDrawParams(b []byte) (DrawParams, error) {
	var p DrawParams
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &p); err != nil {
		return p, fmt.Errorf("decoding draw params: %w", err)
	}
	return p, nil
}
