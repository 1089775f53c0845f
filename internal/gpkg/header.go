package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

var (
	// ErrBadHeader reports a blob that does not start with a valid
	// GeoPackageBinary header.
	ErrBadHeader = errors.New("gpkg: invalid geometry blob header")
	// ErrExtended reports an ExtendedGeoPackageBinary blob.
	ErrExtended = errors.New("gpkg: extended geometry blobs are not supported")
)

const (
	flagLittleEndian = 1 << 0
	flagEnvelopeMask = 0x7 << 1
	flagEmpty        = 1 << 4
	flagExtended     = 1 << 5
)

// Header is the decoded GeoPackageBinary header that precedes the WKB
// payload of every geometry blob.
type Header struct {
	Version  byte
	Empty    bool
	SRID     int32
	Envelope []float64
	// Len is the header length in bytes, i.e. the offset of the WKB.
	Len int
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return Header{}, ErrBadHeader
	}
	flags := b[3]
	if flags&flagExtended != 0 {
		return Header{}, ErrExtended
	}

	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}

	var envLen int
	switch (flags & flagEnvelopeMask) >> 1 {
	case 0:
	case 1:
		envLen = 4
	case 2, 3:
		envLen = 6
	case 4:
		envLen = 8
	default:
		return Header{}, fmt.Errorf("%w: envelope code %d", ErrBadHeader, (flags&flagEnvelopeMask)>>1)
	}

	h := Header{
		Version: b[2],
		Empty:   flags&flagEmpty != 0,
		SRID:    int32(order.Uint32(b[4:8])),
		Len:     8 + envLen*8,
	}
	if len(b) < h.Len {
		return Header{}, fmt.Errorf("%w: truncated envelope", ErrBadHeader)
	}
	if envLen > 0 {
		h.Envelope = make([]float64, envLen)
		for i := range h.Envelope {
			off := 8 + i*8
			h.Envelope[i] = math.Float64frombits(order.Uint64(b[off : off+8]))
		}
	}
	return h, nil
}

// DecodeBlob returns the geometry stored in a GeoPackage blob. NULL blobs
// and blobs flagged empty yield a nil geometry and no error.
func DecodeBlob(b []byte) (geom.T, error) {
	if len(b) == 0 {
		return nil, nil
	}
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if h.Empty {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b[h.Len:])
	if err != nil {
		return nil, fmt.Errorf("gpkg: decode wkb: %w", err)
	}
	return g, nil
}

// EncodeBlob wraps g in a little-endian GeoPackageBinary header without an
// envelope. A nil geometry yields a nil blob.
func EncodeBlob(g geom.T, srid int32) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	payload, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("gpkg: encode wkb: %w", err)
	}
	out := make([]byte, 8, 8+len(payload))
	out[0], out[1], out[2], out[3] = 'G', 'P', 0, flagLittleEndian
	binary.LittleEndian.PutUint32(out[4:8], uint32(srid))
	return append(out, payload...), nil
}
