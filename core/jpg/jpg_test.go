package jpg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	exifcodec "github.com/dsoprea/go-exif/v3"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

var (
	jfifData = []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	dqtData  = bytes.Repeat([]byte{0x01}, 65)
	scanData = []byte{0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3F, 0x00, 0x12, 0x34, 0xFF, 0x00, 0x56, 0xFF, 0xD9}
)

// buildJPEG assembles SOI, the given segments and a fixed scan.
func buildJPEG(t *testing.T, segs ...Segment) []byte {
	t.Helper()
	segs = append(segs, Segment{Marker: MarkerSOS, Data: scanData})
	out, err := Join(segs)
	require.NoError(t, err)
	return out
}

func plainJPEG(t *testing.T) []byte {
	return buildJPEG(t,
		Segment{Marker: MarkerAPP0, Data: jfifData},
		Segment{Marker: 0xDB, Data: dqtData},
	)
}

func TestSplit(t *testing.T) {
	data := plainJPEG(t)
	segs, err := Split(data)
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, MarkerAPP0, segs[0].Marker)
	assert.Equal(t, 2, segs[0].Offset)
	assert.Equal(t, jfifData, segs[0].Data)
	assert.Equal(t, byte(0xDB), segs[1].Marker)
	assert.Equal(t, MarkerSOS, segs[2].Marker)
	assert.Equal(t, scanData, segs[2].Data)

	joined, err := Join(segs)
	require.NoError(t, err)
	assert.Equal(t, data, joined)
}

func TestSplit_FillBytes(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xFF, 0xE0, 0x00, 0x04, 'a', 'b', 0xFF, 0xFF, 0xFF, 0xDA, 0x00}
	segs, err := Split(data)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, []byte("ab"), segs[0].Data)
	assert.Equal(t, 1, segs[0].Fill)
	assert.Equal(t, 3, segs[0].Offset)
	assert.Equal(t, 2, segs[1].Fill)

	joined, err := Join(segs)
	require.NoError(t, err)
	assert.Equal(t, data, joined)
}

func TestSplit_StandaloneMarkers(t *testing.T) {
	data := []byte{
		0xFF, 0xD8,
		0xFF, 0x01, // TEM
		0xFF, 0xE0, 0x00, 0x04, 'a', 'b',
		0xFF, 0xD0, // RST0
		0xFF, 0xD7, // RST7
		0xFF, 0xDA, 0x00,
	}
	segs, err := Split(data)
	require.NoError(t, err)
	require.Len(t, segs, 5)
	assert.Equal(t, byte(0x01), segs[0].Marker)
	assert.Empty(t, segs[0].Data)
	assert.Equal(t, MarkerAPP0, segs[1].Marker)
	assert.Equal(t, byte(0xD0), segs[2].Marker)
	assert.Equal(t, byte(0xD7), segs[3].Marker)
	assert.Equal(t, MarkerSOS, segs[4].Marker)

	joined, err := Join(segs)
	require.NoError(t, err)
	assert.Equal(t, data, joined)

	assert.True(t, Standalone(0x01))
	assert.True(t, Standalone(0xD3))
	assert.False(t, Standalone(MarkerAPP1))
	assert.False(t, Standalone(MarkerEOI))
}

func TestSplit_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no SOI", []byte{0x89, 'P', 'N', 'G', 0, 0}},
		{"EOI before SOS", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x02, 0xFF, 0xD9}},
		{"runs out before SOS", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x02}},
		{"length below two", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x01, 0xFF, 0xDA}},
		{"length overruns", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x10, 0x00, 0xFF, 0xDA}},
		{"garbage between segments", []byte{0xFF, 0xD8, 0x00, 0xE0, 0x00, 0x02, 0xFF, 0xDA}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedContainer), "got %v", err)
		})
	}
}

func TestAppendSegment_TooLarge(t *testing.T) {
	_, err := AppendSegment(nil, MarkerAPP1, make([]byte, MaxSegmentData+1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPacketTooLarge))

	out, err := AppendSegment(nil, MarkerAPP1, make([]byte, MaxSegmentData))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xE1, 0xFF, 0xFF}, out[:4])
}

func TestSegment_Kinds(t *testing.T) {
	assert.True(t, Segment{Marker: MarkerAPP1, Data: []byte("Exif\x00\x00II")}.IsExif())
	assert.True(t, Segment{Marker: MarkerAPP1, Data: []byte("http://ns.adobe.com/xap/1.0/\x00<x/>")}.IsXMP())
	assert.False(t, Segment{Marker: MarkerAPP0, Data: []byte("Exif\x00\x00")}.IsExif())
}

func TestUTF16LE(t *testing.T) {
	b, err := EncodeUTF16LE("Apple")
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 0, 'p', 0, 'p', 0, 'l', 0, 'e', 0, 0, 0}, b)

	for _, s := range []string{"", "red;fruit", "日本語", "🍎 apple"} {
		enc, err := EncodeUTF16LE(s)
		require.NoError(t, err)
		dec, err := DecodeUTF16LE(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
}

func TestLoad_NoExif(t *testing.T) {
	b, err := Load(plainJPEG(t))
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, b.ByteOrder())

	txt, ok, err := ReadText(plainJPEG(t))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Text{}, txt)
}

func TestLoad_CorruptExif(t *testing.T) {
	data := buildJPEG(t, Segment{Marker: MarkerAPP1, Data: []byte("Exif\x00\x00XX\x00\x00")})
	_, err := Load(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCollaborator))
}

func textBlock(t *testing.T, title string) *Block {
	t.Helper()
	b, err := NewBlock(binary.LittleEndian)
	require.NoError(t, err)
	require.NoError(t, b.SetASCII(TagImageDescription, title))
	return b
}

func TestExif_RoundTrip(t *testing.T) {
	b := textBlock(t, "Red apple")
	require.NoError(t, b.SetXP(TagXPTitle, "Red apple"))
	require.NoError(t, b.SetXP(TagXPComment, "A fresh red apple."))
	require.NoError(t, b.SetXP(TagXPKeywords, "apple;red;fruit"))

	raw, err := Dump(b)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("Exif\x00\x00II*\x00")))

	out, err := Insert(raw, plainJPEG(t))
	require.NoError(t, err)

	segs, err := Split(out)
	require.NoError(t, err)
	assert.Equal(t, MarkerAPP0, segs[0].Marker)
	assert.True(t, segs[1].IsExif(), "EXIF goes right after JFIF")

	txt, ok, err := ReadText(out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Text{
		ImageDescription: "Red apple",
		XPTitle:          "Red apple",
		XPComment:        "A fresh red apple.",
		XPKeywords:       "apple;red;fruit",
	}, txt)

	x, err := exif.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	tag, err := x.Get(exif.ImageDescription)
	require.NoError(t, err)
	s, err := tag.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "Red apple", s)
}

func TestExif_KeepsForeignTags(t *testing.T) {
	b, err := NewBlock(binary.BigEndian)
	require.NoError(t, err)
	require.NoError(t, b.Builder().SetStandardWithName("Make", "Acme"))
	exifIb, err := exifcodec.GetOrCreateIbFromRootIb(b.Builder(), "IFD/Exif")
	require.NoError(t, err)
	require.NoError(t, exifIb.SetStandardWithName("DateTimeOriginal", "2024:01:02 03:04:05"))
	raw, err := Dump(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("MM\x00*"), raw[6:10])

	in, err := Insert(raw, plainJPEG(t))
	require.NoError(t, err)

	back, err := Load(in)
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, back.ByteOrder())
	require.NoError(t, back.SetXP(TagXPTitle, "Red apple"))
	again, err := Dump(back)
	require.NoError(t, err)
	out, err := Insert(again, in)
	require.NoError(t, err)

	x, err := exif.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	for name, want := range map[exif.FieldName]string{
		exif.Make:             "Acme",
		exif.DateTimeOriginal: "2024:01:02 03:04:05",
	} {
		tag, err := x.Get(name)
		require.NoError(t, err, "field %s", name)
		got, err := tag.StringVal()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	txt, ok, err := ReadText(out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Red apple", txt.XPTitle)
}

func TestExif_TooLarge(t *testing.T) {
	b, err := NewBlock(binary.LittleEndian)
	require.NoError(t, err)
	require.NoError(t, b.SetXP(TagXPComment, strings.Repeat("x", 40000)))
	_, err = Dump(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCollaborator))
	assert.False(t, errors.Is(err, core.ErrPacketTooLarge))
}

func TestInsert(t *testing.T) {
	first, err := Dump(textBlock(t, "first"))
	require.NoError(t, err)
	second, err := Dump(textBlock(t, "second"))
	require.NoError(t, err)

	t.Run("after SOI without JFIF", func(t *testing.T) {
		in := buildJPEG(t, Segment{Marker: 0xDB, Data: dqtData})
		out, err := Insert(first, in)
		require.NoError(t, err)
		segs, err := Split(out)
		require.NoError(t, err)
		assert.True(t, segs[0].IsExif())
		assert.Equal(t, len(in)+4+len(first), len(out))
	})

	t.Run("replaces existing", func(t *testing.T) {
		in, err := Insert(first, plainJPEG(t))
		require.NoError(t, err)
		out, err := Insert(second, in)
		require.NoError(t, err)

		segs, err := Split(out)
		require.NoError(t, err)
		var n int
		for _, s := range segs {
			if s.IsExif() {
				n++
				assert.Equal(t, second, s.Data)
			}
		}
		assert.Equal(t, 1, n)
	})

	t.Run("rejects payload without header", func(t *testing.T) {
		_, err := Insert([]byte("II*\x00"), plainJPEG(t))
		assert.True(t, errors.Is(err, core.ErrCollaborator))
	})
}

func TestDescribe(t *testing.T) {
	raw, err := Dump(textBlock(t, "Red apple"))
	require.NoError(t, err)
	out, err := Insert(raw, plainJPEG(t))
	require.NoError(t, err)

	fields, err := Describe(out)
	require.NoError(t, err)
	assert.Equal(t, "Red apple", fields["ImageDescription"])
}
