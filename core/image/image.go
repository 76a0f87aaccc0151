// Package image embeds metadata records into still image containers:
// PNG (iTXt XMP chunk) and JPEG (EXIF plus XMP APP1 segment).
package image

import (
	"fmt"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// ──────────────────────────────────────────────────────────────────────────────
// Handler
// ──────────────────────────────────────────────────────────────────────────────

// Handler implements core.Embedder for PNG and JPEG.
type Handler struct {
	format core.FormatID
}

// New returns a Handler for the given format.
func New(id core.FormatID) *Handler { return &Handler{format: id} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtJPEG: {
		ID:         core.FmtJPEG,
		Name:       "JPEG",
		Extensions: []string{".jpg", ".jpeg"},
		MediaType:  "image",
		MIMETypes:  []string{"image/jpeg", "image/jpg"},
		Carriers:   []string{"EXIF APP1 (ImageDescription, XPTitle, XPComment, XPKeywords)", "XMP APP1"},
		Notes:      "XMP segment is placed immediately before Start-of-Scan.",
	},
	core.FmtPNG: {
		ID:         core.FmtPNG,
		Name:       "PNG",
		Extensions: []string{".png"},
		MediaType:  "image",
		MIMETypes:  []string{"image/png"},
		Carriers:   []string{"iTXt XML:com.adobe.xmp"},
		Notes:      "Chunk is placed directly after IHDR.",
	},
}

// Embed writes rec into data and returns a new buffer.
func (h *Handler) Embed(data []byte, rec core.Record) ([]byte, error) {
	switch h.format {
	case core.FmtPNG:
		return EmbedPNG(data, rec)
	case core.FmtJPEG:
		return EmbedJPEG(data, rec)
	}
	return nil, fmt.Errorf("image: no embedder for format %q", h.format)
}

// Extract reads back a record written by Embed.
func (h *Handler) Extract(data []byte) (core.Record, error) {
	switch h.format {
	case core.FmtPNG:
		return ExtractPNG(data)
	case core.FmtJPEG:
		return ExtractJPEG(data)
	}
	return core.Record{}, fmt.Errorf("image: no extractor for format %q", h.format)
}
