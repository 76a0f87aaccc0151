// Package video embeds metadata records into ISO base media files
// (MP4, M4V, QuickTime MOV).
package video

import (
	"fmt"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Handler implements core.Embedder for MP4 and MOV.
type Handler struct {
	format core.FormatID
}

// New returns a Handler for the given format.
func New(id core.FormatID) *Handler { return &Handler{format: id} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtMP4: {
		ID:         core.FmtMP4,
		Name:       "MP4",
		Extensions: []string{".mp4", ".m4v"},
		MediaType:  "video",
		MIMETypes:  []string{"video/mp4"},
		Carriers:   []string{"moov/uuid XMP", "moov/udta/meta/ilst (©nam, ©des)"},
		Notes:      "Original moov becomes a free box; the rewritten moov is appended, so chunk offsets stay valid.",
	},
	core.FmtMOV: {
		ID:         core.FmtMOV,
		Name:       "QuickTime",
		Extensions: []string{".mov", ".qt"},
		MediaType:  "video",
		MIMETypes:  []string{"video/quicktime"},
		Carriers:   []string{"moov/uuid XMP", "moov/udta/meta/ilst (©nam, ©des)"},
		Notes:      "Same layout as MP4.",
	},
}

// Embed writes rec into data and returns a new buffer.
func (h *Handler) Embed(data []byte, rec core.Record) ([]byte, error) {
	mt := core.CanonicalMIME(h.format)
	if mt == "" {
		return nil, fmt.Errorf("video: no embedder for format %q", h.format)
	}
	return EmbedMP4(data, rec, mt)
}

// Extract reads back a record written by Embed.
func (h *Handler) Extract(data []byte) (core.Record, error) {
	return ExtractMP4(data)
}
