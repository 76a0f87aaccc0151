// Package jpg splits JPEG marker streams into segments and provides the EXIF
// codec used by the JPEG embedder.
package jpg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Markers used by the embedder.
const (
	MarkerSOI  byte = 0xD8
	MarkerEOI  byte = 0xD9
	MarkerSOS  byte = 0xDA
	MarkerAPP0 byte = 0xE0
	MarkerAPP1 byte = 0xE1
)

// MaxSegmentData is the largest payload a length-prefixed segment can carry:
// the 16-bit length field counts itself.
const MaxSegmentData = 0xFFFF - 2

var (
	// ExifHeader opens an EXIF APP1 payload.
	ExifHeader = []byte("Exif\x00\x00")
	// XMPSignature opens an XMP APP1 payload. It is followed by one NUL.
	XMPSignature = []byte("http://ns.adobe.com/xap/1.0/")
)

// Segment is one marker segment. For the Start-of-Scan segment Data holds
// everything from the SOS length field to the end of the file, compressed
// scan data and EOI included. Standalone markers (TEM, RSTn) carry no length
// and no Data.
type Segment struct {
	Marker byte
	Offset int // position of the 0xFF marker byte in the source
	Fill   int // 0xFF fill bytes preceding the marker
	Data   []byte
}

// Standalone reports whether marker is written without a length field.
func Standalone(marker byte) bool {
	return marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7)
}

// IsExif reports whether s is an APP1 segment carrying EXIF.
func (s Segment) IsExif() bool {
	return s.Marker == MarkerAPP1 && bytes.HasPrefix(s.Data, ExifHeader)
}

// IsXMP reports whether s is an APP1 segment carrying an XMP packet.
func (s Segment) IsXMP() bool {
	return s.Marker == MarkerAPP1 && bytes.HasPrefix(s.Data, XMPSignature)
}

// Split walks the marker stream from byte 2 up to and including SOS.
// The SOI marker itself is not returned. A stream that ends, or hits EOI,
// before SOS is malformed.
func Split(data []byte) ([]Segment, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != MarkerSOI {
		return nil, core.Malformed("jpeg", 0, "missing SOI marker")
	}
	var segs []Segment
	pos, fill := 2, 0
	for {
		if pos+2 > len(data) {
			return nil, core.Malformed("jpeg", int64(pos), "no Start-of-Scan marker found")
		}
		if data[pos] != 0xFF {
			return nil, core.Malformed("jpeg", int64(pos), "expected marker, found 0x%02X", data[pos])
		}
		marker := data[pos+1]
		if marker == 0xFF {
			fill++
			pos++
			continue
		}
		if marker == MarkerEOI {
			return nil, core.Malformed("jpeg", int64(pos), "no Start-of-Scan marker found before EOI")
		}
		if marker == MarkerSOS {
			segs = append(segs, Segment{Marker: marker, Offset: pos, Fill: fill, Data: data[pos+2:]})
			return segs, nil
		}
		if Standalone(marker) {
			segs = append(segs, Segment{Marker: marker, Offset: pos, Fill: fill})
			pos, fill = pos+2, 0
			continue
		}
		if pos+4 > len(data) {
			return nil, core.Malformed("jpeg", int64(pos), "truncated segment length")
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(data) {
			return nil, core.Malformed("jpeg", int64(pos), "segment 0x%02X has invalid length %d", marker, length)
		}
		segs = append(segs, Segment{Marker: marker, Offset: pos, Fill: fill, Data: data[pos+4 : pos+2+length]})
		pos, fill = pos+2+length, 0
	}
}

// AppendSegment appends a length-prefixed marker segment to dst.
func AppendSegment(dst []byte, marker byte, data []byte) ([]byte, error) {
	if len(data) > MaxSegmentData {
		return nil, &core.PacketTooLargeError{
			Carrier: fmt.Sprintf("jpeg segment 0x%02X", marker),
			Size:    len(data),
			Limit:   MaxSegmentData,
		}
	}
	dst = append(dst, 0xFF, marker)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(data)+2))
	return append(dst, data...), nil
}

// Join reassembles SOI followed by segs. Fill bytes recorded by Split are
// written back, and the final SOS segment is copied as raw bytes.
func Join(segs []Segment) ([]byte, error) {
	size := 2
	for _, s := range segs {
		size += s.Fill + 4 + len(s.Data)
	}
	out := make([]byte, 0, size)
	out = append(out, 0xFF, MarkerSOI)
	for _, s := range segs {
		for range s.Fill {
			out = append(out, 0xFF)
		}
		switch {
		case s.Marker == MarkerSOS:
			out = append(out, 0xFF, MarkerSOS)
			out = append(out, s.Data...)
		case Standalone(s.Marker):
			out = append(out, 0xFF, s.Marker)
		default:
			var err error
			if out, err = AppendSegment(out, s.Marker, s.Data); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
