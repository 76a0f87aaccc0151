package jpg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	exifcodec "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/text/encoding/unicode"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// IFD0 tag names written by the embedder, as go-exif's tag index knows them.
const (
	TagImageDescription = "ImageDescription"
	TagXPTitle          = "XPTitle"
	TagXPComment        = "XPComment"
	TagXPKeywords       = "XPKeywords"
)

// Block is a decoded EXIF chain open for editing. Tags that are not touched
// are written back with their original type and value; directory offsets
// are recomputed by the encoder.
type Block struct {
	root  *exifcodec.IfdBuilder
	order binary.ByteOrder
}

// ByteOrder reports the byte order the block will be encoded in.
func (b *Block) ByteOrder() binary.ByteOrder { return b.order }

// Builder exposes the IFD0 builder for edits beyond the text fields.
func (b *Block) Builder() *exifcodec.IfdBuilder { return b.root }

// go-exif reports some failures by panicking.
func recoverCodec(op string, err *error) {
	if r := recover(); r != nil {
		e, ok := r.(error)
		if !ok {
			e = fmt.Errorf("%v", r)
		}
		*err = &core.CollaboratorError{Op: op, Err: e}
	}
}

// NewBlock returns an empty block in the given byte order.
func NewBlock(order binary.ByteOrder) (b *Block, err error) {
	defer recoverCodec("exif new", &err)
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, &core.CollaboratorError{Op: "exif new", Err: err}
	}
	ti := exifcodec.NewTagIndex()
	return &Block{root: exifcodec.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, order), order: order}, nil
}

// SetASCII stores s in an IFD0 ASCII field.
func (b *Block) SetASCII(name, s string) error {
	return b.set(name, s)
}

// SetXP stores s in an IFD0 Windows XP* field as NUL-terminated UTF-16LE.
func (b *Block) SetXP(name, s string) error {
	v, err := EncodeUTF16LE(s)
	if err != nil {
		return &core.CollaboratorError{Op: "exif set", Err: err}
	}
	return b.set(name, v)
}

func (b *Block) set(name string, v any) (err error) {
	defer recoverCodec("exif set", &err)
	if err := b.root.SetStandardWithName(name, v); err != nil {
		return &core.CollaboratorError{Op: "exif set " + name, Err: err}
	}
	return nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16LE encodes s as UTF-16LE followed by a two-byte NUL.
func EncodeUTF16LE(s string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("utf-16 encode: %w", err)
	}
	return append(b, 0, 0), nil
}

// DecodeUTF16LE decodes UTF-16LE bytes, dropping trailing NUL code units.
func DecodeUTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	for len(b) >= 2 && b[len(b)-2] == 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-2]
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("utf-16 decode: %w", err)
	}
	return string(out), nil
}

// Load decodes the EXIF block of a JPEG. A JPEG without EXIF yields an
// empty little-endian block.
func Load(jpeg []byte) (*Block, error) {
	segs, err := Split(jpeg)
	if err != nil {
		return nil, err
	}
	if s, ok := exifSegment(segs); ok {
		return LoadTIFF(s.Data[len(ExifHeader):])
	}
	return NewBlock(binary.LittleEndian)
}

func exifSegment(segs []Segment) (Segment, bool) {
	for _, s := range segs {
		if s.IsExif() {
			return s, true
		}
	}
	return Segment{}, false
}

// LoadTIFF decodes a raw TIFF structure (the APP1 payload after "Exif\0\0")
// with every IFD in the chain, sub-IFDs and thumbnail included.
func LoadTIFF(raw []byte) (b *Block, err error) {
	defer recoverCodec("exif load", &err)
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, &core.CollaboratorError{Op: "exif load", Err: err}
	}
	ti := exifcodec.NewTagIndex()
	eh, index, err := exifcodec.Collect(im, ti, raw)
	if err != nil {
		return nil, &core.CollaboratorError{Op: "exif load", Err: err}
	}
	if index.RootIfd == nil {
		return nil, &core.CollaboratorError{Op: "exif load", Err: errors.New("no IFD0 directory")}
	}
	return &Block{root: exifcodec.NewIfdBuilderFromExistingChain(index.RootIfd), order: eh.ByteOrder}, nil
}

// Dump serializes b as an APP1 payload: "Exif\0\0" followed by a TIFF
// structure in the block's byte order.
func Dump(b *Block) (out []byte, err error) {
	defer recoverCodec("exif dump", &err)
	tiffData, err := exifcodec.NewIfdByteEncoder().EncodeToExif(b.root)
	if err != nil {
		return nil, &core.CollaboratorError{Op: "exif dump", Err: err}
	}
	out = make([]byte, 0, len(ExifHeader)+len(tiffData))
	out = append(out, ExifHeader...)
	out = append(out, tiffData...)
	if len(out) > MaxSegmentData {
		return nil, &core.CollaboratorError{
			Op:  "exif dump",
			Err: fmt.Errorf("encoded block of %d bytes exceeds APP1 limit of %d", len(out), MaxSegmentData),
		}
	}
	return out, nil
}

// Text holds the IFD0 text fields the embedder writes.
type Text struct {
	ImageDescription string
	XPTitle          string
	XPComment        string
	XPKeywords       string
}

// ReadText decodes the embedder's IFD0 text fields with goexif. ok is false
// when the JPEG has no EXIF block.
func ReadText(jpeg []byte) (txt Text, ok bool, err error) {
	segs, err := Split(jpeg)
	if err != nil {
		return txt, false, err
	}
	s, found := exifSegment(segs)
	if !found {
		return txt, false, nil
	}
	x, err := exif.Decode(bytes.NewReader(s.Data))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return txt, false, &core.CollaboratorError{Op: "exif decode", Err: err}
	}
	if tg, err := x.Get(exif.ImageDescription); err == nil {
		txt.ImageDescription, _ = tg.StringVal()
	}
	for _, f := range []struct {
		name exif.FieldName
		dst  *string
	}{
		{exif.XPTitle, &txt.XPTitle},
		{exif.XPComment, &txt.XPComment},
		{exif.XPKeywords, &txt.XPKeywords},
	} {
		tg, err := x.Get(f.name)
		if err != nil {
			continue
		}
		if v, err := DecodeUTF16LE(tg.Val); err == nil {
			*f.dst = v
		}
	}
	return txt, true, nil
}

// Insert places an EXIF APP1 payload into a JPEG. An existing EXIF segment
// is replaced in place; otherwise the segment goes after a leading APP0
// (JFIF) or directly after SOI.
func Insert(exifData, jpeg []byte) ([]byte, error) {
	if !bytes.HasPrefix(exifData, ExifHeader) {
		return nil, &core.CollaboratorError{Op: "exif insert", Err: errors.New("payload does not start with Exif header")}
	}
	segs, err := Split(jpeg)
	if err != nil {
		return nil, err
	}
	for i, s := range segs {
		if s.IsExif() {
			segs[i].Data = exifData
			return Join(segs)
		}
	}
	at := 0
	if len(segs) > 0 && segs[0].Marker == MarkerAPP0 {
		at = 1
	}
	segs = slices.Insert(segs, at, Segment{Marker: MarkerAPP1, Data: exifData})
	return Join(segs)
}

// Describe lists the EXIF fields goexif recognises, keyed by field name.
func Describe(jpeg []byte) (map[string]string, error) {
	x, err := exif.Decode(bytes.NewReader(jpeg))
	if err != nil {
		return nil, &core.CollaboratorError{Op: "exif decode", Err: err}
	}
	w := walker{fields: map[string]string{}}
	if err := x.Walk(w); err != nil {
		return nil, &core.CollaboratorError{Op: "exif walk", Err: err}
	}
	return w.fields, nil
}

type walker struct {
	fields map[string]string
}

func (w walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	if s, err := tag.StringVal(); err == nil {
		val = s
	}
	w.fields[string(name)] = val
	return nil
}
