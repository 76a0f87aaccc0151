// Package audio embeds metadata records into MP3 files through an ID3v2
// tag.
package audio

import (
	"fmt"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Handler implements core.Embedder for audio formats.
type Handler struct {
	format core.FormatID
}

// New returns an audio Handler for the given format.
func New(id core.FormatID) *Handler { return &Handler{format: id} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtMP3: {
		ID:         core.FmtMP3,
		Name:       "MP3",
		Extensions: []string{".mp3"},
		MediaType:  "audio",
		MIMETypes:  []string{"audio/mpeg", "audio/mp3"},
		Carriers:   []string{"ID3v2.4 TIT2", "COMM", "TXXX:keywords", "PRIV:XMP"},
		Notes:      "Existing frames are kept; the tag is rewritten as ID3v2.4 in front of the unchanged audio frames.",
	},
}

// Embed writes rec into data and returns a new buffer.
func (h *Handler) Embed(data []byte, rec core.Record) ([]byte, error) {
	if h.format != core.FmtMP3 {
		return nil, fmt.Errorf("audio: no embedder for format %q", h.format)
	}
	return EmbedMP3(data, rec)
}

// Extract reads back a record written by Embed.
func (h *Handler) Extract(data []byte) (core.Record, error) {
	if h.format != core.FmtMP3 {
		return core.Record{}, fmt.Errorf("audio: no extractor for format %q", h.format)
	}
	return ExtractMP3(data)
}
