package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dhowden/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/box"
	"github.com/ankit-chaubey/media-metadata-embed/core/xmp"
)

var sampleRecord = core.Record{
	Title:       "Aerial drone footage of a green forest",
	Description: "Slow flyover above pine trees & a <river>.",
	Keywords:    []string{"forest", "drone", "aerial", "nature"},
}

// createMockAtom creates a test atom with given type and data.
func createMockAtom(atomType string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(data)))
	out = append(out, atomType...)
	return append(out, data...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func testMoov(extra ...[]byte) []byte {
	mvhd := createMockAtom("mvhd", make([]byte, 100))
	stco := createMockAtom("stco", []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 40})
	trak := createMockAtom("trak", createMockAtom("mdia", stco))
	return createMockAtom("moov", concat(append([][]byte{mvhd, trak}, extra...)...))
}

// testMP4 lays out ftyp, mdat, moov.
func testMP4(extra ...[]byte) []byte {
	return concat(
		createMockAtom("ftyp", []byte("isom\x00\x00\x02\x00isomiso2mp41")),
		createMockAtom("mdat", bytes.Repeat([]byte{0xAB, 0xCD}, 64)),
		testMoov(extra...),
	)
}

func countChildren(t *testing.T, data []byte, h box.Header, pred func(box.Header) bool) int {
	t.Helper()
	hs, err := box.Children(data, h.DataOffset(), h.End())
	require.NoError(t, err)
	n := 0
	for _, c := range hs {
		if pred(c) {
			n++
		}
	}
	return n
}

func TestEmbedMP4_Layout(t *testing.T) {
	in := testMP4()
	orig := bytes.Clone(in)
	moov, err := locateMoov(in)
	require.NoError(t, err)

	out, err := EmbedMP4(in, sampleRecord, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, orig, in, "input is not modified")

	newMoov := &box.Box{
		Type:     typeMoov,
		Payload:  in[moov.DataOffset():moov.End()],
		Children: []*box.Box{xmpBox(xmp.Build(sampleRecord, "video/mp4")), udtaBox(sampleRecord)},
	}
	assert.Equal(t, len(in)+newMoov.Size(), len(out))

	// Everything before the old moov is untouched.
	assert.Equal(t, in[:moov.Offset], out[:moov.Offset])

	// The old moov range is a zero-filled free box of the same size.
	assert.Equal(t, uint32(moov.Size), binary.BigEndian.Uint32(out[moov.Offset:]))
	assert.Equal(t, "free", string(out[moov.Offset+4:moov.Offset+8]))
	assert.Equal(t, make([]byte, moov.Size-8), out[moov.DataOffset():moov.End()])

	// The new moov sits at the tail and starts with the original children.
	tail := out[len(in):]
	assert.Equal(t, uint32(len(tail)), binary.BigEndian.Uint32(tail))
	assert.Equal(t, "moov", string(tail[4:8]))
	assert.Equal(t, in[moov.DataOffset():moov.End()], tail[8:moov.Size])
	assert.Equal(t, "uuid", string(tail[moov.Size+4:moov.Size+8]))
	assert.Equal(t, XMPUUID[:], tail[moov.Size+8:moov.Size+24])
}

func TestEmbedMP4_MoovBeforeMdat(t *testing.T) {
	ftyp := createMockAtom("ftyp", []byte("qt  \x00\x00\x02\x00qt  "))
	mdat := createMockAtom("mdat", bytes.Repeat([]byte{0x11}, 32))
	in := concat(ftyp, testMoov(), mdat)

	out, err := EmbedMP4(in, sampleRecord, "video/quicktime")
	require.NoError(t, err)

	mdatAt := len(ftyp) + len(testMoov())
	assert.Equal(t, mdat, out[mdatAt:mdatAt+len(mdat)], "media data does not move")

	got, err := ExtractMP4(out)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, got)
}

func TestMetadataBoxes(t *testing.T) {
	b, err := hdlrBox().Encode()
	require.NoError(t, err)
	require.Len(t, b, 32)
	assert.Equal(t, "hdlr", string(b[4:8]))
	assert.Equal(t, "mdir", string(b[16:20]))
	assert.Equal(t, "appl", string(b[20:24]))

	item, err := ilstItem(typeName, "abc").Encode()
	require.NoError(t, err)
	assert.Equal(t, "\xa9nam", string(item[4:8]))
	data := item[8:]
	assert.Equal(t, uint32(16+3), binary.BigEndian.Uint32(data))
	assert.Equal(t, "data", string(data[4:8]))
	assert.Equal(t, byte(1), data[11], "UTF-8 type indicator")
	assert.Equal(t, "abc", string(data[16:]))

	udta, err := udtaBox(core.Record{Title: "T", Description: "D"}).Encode()
	require.NoError(t, err)
	meta, ok, err := box.Find(udta, 8, len(udta), typeMeta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 0}, meta.Data(udta)[:4])
}

func TestEmbedMP4_RoundTrip(t *testing.T) {
	out, err := EmbedMP4(testMP4(), sampleRecord, "video/mp4")
	require.NoError(t, err)

	got, err := ExtractMP4(out)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, got)
}

func TestEmbedMP4_ReadableByTagLibrary(t *testing.T) {
	out, err := EmbedMP4(testMP4(), sampleRecord, "video/mp4")
	require.NoError(t, err)

	m, err := tag.ReadFrom(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, tag.MP4, m.Format())
	assert.Equal(t, sampleRecord.Title, m.Title())
}

func TestEmbedMP4_ReplacesPreviousMetadata(t *testing.T) {
	first, err := EmbedMP4(testMP4(), core.Record{Title: "old", Keywords: []string{"stale"}}, "video/mp4")
	require.NoError(t, err)
	second, err := EmbedMP4(first, sampleRecord, "video/mp4")
	require.NoError(t, err)

	moov, err := locateMoov(second)
	require.NoError(t, err)
	assert.Equal(t, len(first), moov.Offset, "second embed relocates the tail moov")

	assert.Equal(t, 1, countChildren(t, second, moov, func(h box.Header) bool { return isXMPBox(second, h) }))
	assert.Equal(t, 1, countChildren(t, second, moov, func(h box.Header) bool { return h.Type == typeUdta }))

	got, err := ExtractMP4(second)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, got)
}

func TestEmbedMP4_KeepsForeignUdta(t *testing.T) {
	loc := createMockAtom("\xa9xyz", []byte("+12.34-056.78/"))
	in := testMP4(createMockAtom("udta", loc))

	first, err := EmbedMP4(in, sampleRecord, "video/mp4")
	require.NoError(t, err)
	second, err := EmbedMP4(first, sampleRecord, "video/mp4")
	require.NoError(t, err)

	moov, err := locateMoov(second)
	require.NoError(t, err)
	assert.Equal(t, 1, countChildren(t, second, moov, func(h box.Header) bool { return h.Type == typeUdta }))
	udta, ok, err := box.Find(second, moov.DataOffset(), moov.End(), typeUdta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(udta.Data(second), loc), "foreign udta child kept verbatim and first")
	assert.Equal(t, 1, countChildren(t, second, udta, func(h box.Header) bool { return h.Type == typeMeta }))

	got, err := ExtractMP4(second)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, got)
}

// appleUdta builds udta/meta(hdlr mdir)/ilst with the given items.
func appleUdta(t *testing.T, items ...*box.Box) []byte {
	t.Helper()
	b, err := box.Container(typeUdta, &box.Box{
		Type:     typeMeta,
		Prefix:   make([]byte, 4),
		Children: []*box.Box{hdlrBox(), box.Container(typeIlst, items...)},
	}).Encode()
	require.NoError(t, err)
	return b
}

func TestEmbedMP4_MergesForeignIlstItems(t *testing.T) {
	artist, err := ilstItem(box.T("\xa9ART"), "Jane Pilot").Encode()
	require.NoError(t, err)
	encoder, err := ilstItem(box.T("\xa9too"), "Lavf60.3.100").Encode()
	require.NoError(t, err)
	in := testMP4(appleUdta(t,
		ilstItem(box.T("\xa9too"), "Lavf60.3.100"),
		ilstItem(typeName, "old title"),
		ilstItem(box.T("\xa9ART"), "Jane Pilot"),
		ilstItem(typeName, "duplicate title"),
	))

	out, err := EmbedMP4(in, sampleRecord, "video/mp4")
	require.NoError(t, err)

	moov, err := locateMoov(out)
	require.NoError(t, err)
	assert.Equal(t, 1, countChildren(t, out, moov, func(h box.Header) bool { return h.Type == typeUdta }))
	ilst, ok, err := box.FindPath(out, moov.DataOffset(), moov.End(), metaSkip, typeUdta, typeMeta, typeIlst)
	require.NoError(t, err)
	require.True(t, ok)

	items, err := box.Children(out, ilst.DataOffset(), ilst.End())
	require.NoError(t, err)
	var types []string
	for _, it := range items {
		types = append(types, it.Type.String())
	}
	assert.Equal(t, []string{"\xa9too", "\xa9nam", "\xa9ART", "\xa9des"}, types)
	assert.Equal(t, encoder, items[0].Raw(out), "foreign items are byte-identical")
	assert.Equal(t, artist, items[2].Raw(out))

	title, err := ilstText(out, ilst, typeName)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord.Title, title)

	m, err := tag.ReadFrom(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "Jane Pilot", m.Artist())
	assert.Equal(t, sampleRecord.Title, m.Title())
}

func TestMergeUdta(t *testing.T) {
	whole := func(b []byte) box.Header { return box.Header{Offset: 0, Size: len(b), Type: typeUdta} }

	ours, err := udtaBox(core.Record{Title: "old"}).Encode()
	require.NoError(t, err)
	got, ok := mergeUdta(ours, whole(ours), sampleRecord)
	require.True(t, ok)
	want, err := udtaBox(sampleRecord).Encode()
	require.NoError(t, err)
	assert.Equal(t, want, got, "an earlier embed is replaced exactly")

	loc := createMockAtom("\xa9xyz", []byte("here"))
	plain := createMockAtom("udta", loc)
	got, ok = mergeUdta(plain, whole(plain), sampleRecord)
	require.True(t, ok)
	meta, err := metaBox(sampleRecord).Encode()
	require.NoError(t, err)
	assert.Equal(t, createMockAtom("udta", concat(loc, meta)), got)

	// QuickTime udta lists may end in a 32-bit zero terminator.
	terminated := createMockAtom("udta", concat(loc, []byte{0, 0, 0, 0}))
	_, ok = mergeUdta(terminated, whole(terminated), sampleRecord)
	assert.False(t, ok)
}

func TestEmbedMP4_TrailingBoxToEndOfFile(t *testing.T) {
	ftyp := createMockAtom("ftyp", []byte("isom\x00\x00\x02\x00isomiso2mp41"))
	moov := testMoov()
	mdat := concat([]byte{0, 0, 0, 0}, []byte("mdat"), bytes.Repeat([]byte{0x5A}, 48))
	in := concat(ftyp, moov, mdat)

	out, err := EmbedMP4(in, sampleRecord, "video/mp4")
	require.NoError(t, err)

	mdatAt := len(ftyp) + len(moov)
	assert.Equal(t, uint32(len(mdat)), binary.BigEndian.Uint32(out[mdatAt:]), "size 0 made explicit")
	assert.Equal(t, mdat[4:], out[mdatAt+4:mdatAt+len(mdat)])

	top, err := box.TopLevel(out)
	require.NoError(t, err)
	require.Len(t, top, 4)
	for _, h := range top {
		assert.False(t, h.ToEOF)
	}
	assert.Equal(t, typeMoov, top[3].Type)
	assert.Equal(t, len(in), top[3].Offset)
	assert.Equal(t, len(out), top[3].End())

	got, err := ExtractMP4(out)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, got)
}

func TestExtractMP4_IlstFallback(t *testing.T) {
	udta, err := udtaBox(core.Record{Title: "Only title", Description: "Only desc"}).Encode()
	require.NoError(t, err)

	got, err := ExtractMP4(testMP4(udta))
	require.NoError(t, err)
	assert.Equal(t, core.Record{Title: "Only title", Description: "Only desc"}, got)

	got, err = ExtractMP4(testMP4())
	require.NoError(t, err)
	assert.Equal(t, core.Record{}, got)
}

func TestEmbedMP4_Malformed(t *testing.T) {
	ftyp := createMockAtom("ftyp", []byte("isom"))
	large := concat([]byte{0, 0, 0, 1}, []byte("mdat"), []byte{0, 0, 0, 0, 0, 0, 0, 24}, make([]byte, 8))
	overrun := concat(ftyp, []byte{0, 0, 1, 0}, []byte("mdat"), make([]byte, 8))
	zero := concat(ftyp, []byte{0, 0, 0, 0}, []byte("mdat"), make([]byte, 8))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no moov", concat(ftyp, createMockAtom("mdat", make([]byte, 16)))},
		{"64-bit size", concat(ftyp, large, testMoov())},
		{"overrun", overrun},
		{"zero size", zero},
		{"truncated moov child", concat(ftyp, createMockAtom("moov", []byte{0, 0, 0, 64, 't', 'r', 'a', 'k'}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EmbedMP4(tt.data, sampleRecord, "video/mp4")
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, core.ErrMalformedContainer), "got %v", err)
		})
	}
}

func TestHandler(t *testing.T) {
	h := New(core.FmtMOV)
	assert.Equal(t, []string{"video/quicktime"}, h.Info().MIMETypes)

	out, err := h.Embed(testMP4(), sampleRecord)
	require.NoError(t, err)
	moov, err := locateMoov(out)
	require.NoError(t, err)
	hs, err := box.Children(out, moov.DataOffset(), moov.End())
	require.NoError(t, err)
	for _, c := range hs {
		if isXMPBox(out, c) {
			p, err := xmp.Parse(c.Data(out)[16:])
			require.NoError(t, err)
			assert.Equal(t, "video/quicktime", p.Format)
		}
	}
}
