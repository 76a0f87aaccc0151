// Package box reads and writes ISO Base Media File Format boxes (atoms).
//
// A Box is a tagged union: a leaf carries Payload, a container carries
// Children. Prefix holds bytes that sit between the header and the payload
// or children, such as the version/flags word of a full box or the 16-byte
// user type of a uuid box.
package box

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the size of a compact box header: 4-byte size + 4-byte type.
const HeaderSize = 8

// Type is a 4-byte box type code. QuickTime item names use byte 0xA9
// ("\xa9nam"), so Type is raw bytes, not UTF-8.
type Type [4]byte

// T builds a Type from a 4-byte string. It panics on other lengths, so use
// it only with constants.
func T(s string) Type {
	if len(s) != 4 {
		panic(fmt.Sprintf("box: type %q is not 4 bytes", s))
	}
	var t Type
	copy(t[:], s)
	return t
}

func (t Type) String() string { return string(t[:]) }

// Box is a box under construction.
type Box struct {
	Type     Type
	Prefix   []byte
	Payload  []byte
	Children []*Box
}

// Leaf returns a box with a raw payload.
func Leaf(t Type, payload []byte) *Box {
	return &Box{Type: t, Payload: payload}
}

// Container returns a box whose payload is its children.
func Container(t Type, children ...*Box) *Box {
	return &Box{Type: t, Children: children}
}

// Size returns the total encoded size, header included.
func (b *Box) Size() int {
	n := HeaderSize + len(b.Prefix) + len(b.Payload)
	for _, c := range b.Children {
		n += c.Size()
	}
	return n
}

// Encode serializes the box. It fails when the box does not fit a 32-bit
// size field; 64-bit sizes are not written.
func (b *Box) Encode() ([]byte, error) {
	size := b.Size()
	if uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("box %s: size %d exceeds 32-bit length field", b.Type, size)
	}
	out := make([]byte, 0, size)
	return b.appendTo(out), nil
}

// AppendTo appends the encoded box to dst.
func (b *Box) AppendTo(dst []byte) ([]byte, error) {
	if size := b.Size(); uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("box %s: size %d exceeds 32-bit length field", b.Type, size)
	}
	return b.appendTo(dst), nil
}

func (b *Box) appendTo(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(b.Size()))
	dst = append(dst, b.Type[:]...)
	dst = append(dst, b.Prefix...)
	dst = append(dst, b.Payload...)
	for _, c := range b.Children {
		dst = c.appendTo(dst)
	}
	return dst
}

// PutHeader writes a compact header into dst[0:8].
func PutHeader(dst []byte, size uint32, t Type) {
	binary.BigEndian.PutUint32(dst[0:4], size)
	copy(dst[4:8], t[:])
}
