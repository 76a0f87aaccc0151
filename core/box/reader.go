package box

import (
	"bytes"
	"encoding/binary"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Header locates one box inside a buffer.
type Header struct {
	Offset int  // position of the size field
	Size   int  // total size, header included
	Type   Type //
	ToEOF  bool // size field is 0; Size was taken from the buffer end
}

// End returns the offset one past the last byte of the box.
func (h Header) End() int { return h.Offset + h.Size }

// DataOffset returns the offset of the first byte after the header.
func (h Header) DataOffset() int { return h.Offset + HeaderSize }

// Data returns the bytes after the header.
func (h Header) Data(buf []byte) []byte { return buf[h.DataOffset():h.End()] }

// Raw returns the whole box, header included.
func (h Header) Raw(buf []byte) []byte { return buf[h.Offset:h.End()] }

// ReadHeader reads the box header at off and checks that the box lies within
// buf[:end]. A size of 0 (to end of file) or 1 (64-bit size) is reported as
// malformed; TopLevel handles size 0 for the last box of a file.
func ReadHeader(buf []byte, off, end int) (Header, error) {
	if off < 0 || off+HeaderSize > end || end > len(buf) {
		return Header{}, core.Malformed("box", int64(off), "truncated box header")
	}
	size := binary.BigEndian.Uint32(buf[off : off+4])
	var t Type
	copy(t[:], buf[off+4:off+8])
	switch {
	case size == 1:
		return Header{}, core.Malformed("box", int64(off), "box %q uses a 64-bit size, which is not supported", t.String())
	case size < HeaderSize:
		return Header{}, core.Malformed("box", int64(off), "box %q has invalid size %d", t.String(), size)
	case uint64(off)+uint64(size) > uint64(end):
		return Header{}, core.Malformed("box", int64(off), "box %q of size %d overruns its parent", t.String(), size)
	}
	return Header{Offset: off, Size: int(size), Type: t}, nil
}

// TopLevel lists the top-level boxes of a file. A box with size 0 runs to
// the end of the buffer and ends the walk; it is returned with ToEOF set.
// Fewer than HeaderSize trailing bytes are ignored.
func TopLevel(buf []byte) ([]Header, error) {
	var out []Header
	for off := 0; off+HeaderSize <= len(buf); {
		if binary.BigEndian.Uint32(buf[off:off+4]) == 0 {
			var t Type
			copy(t[:], buf[off+4:off+8])
			return append(out, Header{Offset: off, Size: len(buf) - off, Type: t, ToEOF: true}), nil
		}
		h, err := ReadHeader(buf, off, len(buf))
		if err != nil {
			return nil, err
		}
		out = append(out, h)
		off = h.End()
	}
	return out, nil
}

// Children lists the boxes packed in buf[start:end].
func Children(buf []byte, start, end int) ([]Header, error) {
	var out []Header
	for off := start; off < end; {
		h, err := ReadHeader(buf, off, end)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
		off = h.End()
	}
	return out, nil
}

// Find returns the first box of type t in buf[start:end]. The boolean is
// false when the scan completes without a match.
func Find(buf []byte, start, end int, t Type) (Header, bool, error) {
	for off := start; off < end; {
		h, err := ReadHeader(buf, off, end)
		if err != nil {
			return Header{}, false, err
		}
		if h.Type == t {
			return h, true, nil
		}
		off = h.End()
	}
	return Header{}, false, nil
}

// FindPath descends through nested containers. skip maps a container type
// to the number of bytes between its header and its first child, e.g. 4 for
// the version/flags word of "meta".
func FindPath(buf []byte, start, end int, skip map[Type]int, path ...Type) (Header, bool, error) {
	var h Header
	for i, t := range path {
		var ok bool
		var err error
		h, ok, err = Find(buf, start, end, t)
		if err != nil || !ok {
			return Header{}, false, err
		}
		if i == len(path)-1 {
			break
		}
		start = h.DataOffset() + skip[t]
		end = h.End()
		if start > end {
			return Header{}, false, core.Malformed("box", int64(h.Offset), "box %q too small for its prefix", t.String())
		}
	}
	return h, true, nil
}

// HasPrefix reports whether the box data begins with p.
func (h Header) HasPrefix(buf []byte, p []byte) bool {
	return bytes.HasPrefix(h.Data(buf), p)
}
