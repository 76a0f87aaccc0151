package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

var sampleRecord = core.Record{
	Title:       "Sunset over the mountains with orange sky",
	Description: "Golden hour light over a mountain range & valley.",
	Keywords:    []string{"sunset", "mountain", "sky", "orange", "landscape"},
}

func fixtureImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
	}
	return img
}

func fixturePNG(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, fixtureImage()))
	return buf.Bytes()
}

func fixtureJPEG(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, fixtureImage(), nil))
	return buf.Bytes()
}

func atom(typ string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(data)))
	out = append(out, typ...)
	return append(out, data...)
}

func fixtureMP4() []byte {
	var out []byte
	out = append(out, atom("ftyp", []byte("isom\x00\x00\x02\x00isom"))...)
	out = append(out, atom("mdat", bytes.Repeat([]byte{7}, 40))...)
	out = append(out, atom("moov", atom("mvhd", make([]byte, 100)))...)
	return out
}

func fixtureMP3() []byte {
	return append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 200)...)
}

func fixtures(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"image/png":       fixturePNG(t),
		"image/jpeg":      fixtureJPEG(t),
		"video/mp4":       fixtureMP4(),
		"video/quicktime": fixtureMP4(),
		"audio/mpeg":      fixtureMP3(),
	}
}

func TestEmbed_RoundTrip(t *testing.T) {
	for mt, in := range fixtures(t) {
		t.Run(mt, func(t *testing.T) {
			orig := bytes.Clone(in)
			out, err := Embed(in, mt, sampleRecord)
			require.NoError(t, err)
			assert.Equal(t, orig, in, "input is not modified")
			assert.Greater(t, len(out), len(in))

			got, err := Extract(out, mt)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord, got)
		})
	}
}

func TestEmbed_MIMEMatching(t *testing.T) {
	pngData := fixturePNG(t)
	for _, mt := range []string{"IMAGE/PNG", "image/png; charset=binary", " image/png "} {
		_, err := Embed(pngData, mt, sampleRecord)
		assert.NoError(t, err, mt)
	}
	_, err := Embed(fixtureJPEG(t), "image/jpg", sampleRecord)
	assert.NoError(t, err)
}

func TestEmbed_Unsupported(t *testing.T) {
	for _, mt := range []string{"image/gif", "application/pdf", "", "video/x-matroska"} {
		out, err := Embed(fixturePNG(t), mt, sampleRecord)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))

		var ue *core.UnsupportedFormatError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, mt, ue.MIME)
	}

	// Unsupported types fail before the buffer is looked at.
	_, err := Embed(nil, "image/webp", sampleRecord)
	assert.True(t, errors.Is(err, core.ErrUnsupportedFormat))
}

func TestEmbed_MismatchedContent(t *testing.T) {
	_, err := Embed(fixtureJPEG(t), "image/png", sampleRecord)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedContainer))
	assert.False(t, errors.Is(err, core.ErrUnsupportedFormat))
}

func TestEmbed_Concurrent(t *testing.T) {
	in := fixtures(t)
	want := map[string][]byte{}
	for mt, data := range in {
		out, err := Embed(data, mt, sampleRecord)
		require.NoError(t, err)
		want[mt] = out
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for mt, data := range in {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := Embed(data, mt, sampleRecord)
				assert.NoError(t, err)
				assert.Equal(t, want[mt], out)
			}()
		}
	}
	wg.Wait()
}

func TestDetect(t *testing.T) {
	assert.Equal(t, "image/png", Detect(fixturePNG(t), ""))
	assert.Equal(t, "image/jpeg", Detect(fixtureJPEG(t), "photo.png"), "magic wins over extension")
	assert.Equal(t, "video/mp4", Detect(fixtureMP4(), ""))
	assert.Equal(t, "audio/mpeg", Detect(fixtureMP3(), ""))
	assert.Equal(t, "video/quicktime", Detect([]byte("garbage"), "clip.MOV"))
	assert.Equal(t, "", Detect([]byte("garbage"), "notes.txt"))
	assert.Equal(t, "", Detect(nil, ""))
}

func TestFormats(t *testing.T) {
	fs := Formats()
	require.Len(t, fs, 5)
	var names []string
	for _, f := range fs {
		names = append(names, f.Name)
		assert.NotEmpty(t, f.MIMETypes)
		assert.Equal(t, f.ID, core.FormatForMIME(f.MIMETypes[0]))
	}
	assert.Equal(t, []string{"PNG", "JPEG", "MP4", "QuickTime", "MP3"}, names)
}

func TestEmbed_KeywordsComeBackCleaned(t *testing.T) {
	rec := core.Record{
		Title:       sampleRecord.Title,
		Description: sampleRecord.Description,
		Keywords:    []string{"  apple ", "", "red", "   ", "\tfruit\n"},
	}
	for mt, in := range fixtures(t) {
		t.Run(mt, func(t *testing.T) {
			out, err := Embed(in, mt, rec)
			require.NoError(t, err)
			got, err := Extract(out, mt)
			require.NoError(t, err)

			assert.Equal(t, []string{"apple", "red", "fruit"}, got.Keywords)
			assert.NotEqual(t, rec.Keywords, got.Keywords, "padding and blanks are not preserved")
			assert.True(t, rec.Equal(got))
		})
	}

	blank := core.Record{Title: "t", Keywords: []string{" ", ""}}
	for mt, in := range fixtures(t) {
		out, err := Embed(in, mt, blank)
		require.NoError(t, err, mt)
		got, err := Extract(out, mt)
		require.NoError(t, err, mt)
		assert.Empty(t, got.Keywords, mt)
		assert.True(t, blank.Equal(got), mt)
	}
}
