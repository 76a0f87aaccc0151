// Package engine dispatches embed and extract calls to the format handlers
// by declared MIME type.
package engine

import (
	"fmt"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/audio"
	"github.com/ankit-chaubey/media-metadata-embed/core/image"
	"github.com/ankit-chaubey/media-metadata-embed/core/video"
)

// sniffLen is how much of a buffer Detect looks at.
const sniffLen = 64

// Engine maps formats to embedders. It is read-only after New and safe for
// concurrent use.
type Engine struct {
	handlers map[core.FormatID]core.Embedder
	order    []core.FormatID
}

// New returns an Engine with every built-in format registered.
func New() *Engine {
	e := &Engine{handlers: map[core.FormatID]core.Embedder{}}
	e.register(core.FmtPNG, image.New(core.FmtPNG))
	e.register(core.FmtJPEG, image.New(core.FmtJPEG))
	e.register(core.FmtMP4, video.New(core.FmtMP4))
	e.register(core.FmtMOV, video.New(core.FmtMOV))
	e.register(core.FmtMP3, audio.New(core.FmtMP3))
	return e
}

func (e *Engine) register(id core.FormatID, h core.Embedder) {
	e.handlers[id] = h
	e.order = append(e.order, id)
}

// Lookup returns the embedder for a MIME type. Matching is
// case-insensitive and ignores parameters.
func (e *Engine) Lookup(mimeType string) (core.Embedder, error) {
	h, ok := e.handlers[core.FormatForMIME(mimeType)]
	if !ok {
		return nil, &core.UnsupportedFormatError{MIME: mimeType}
	}
	return h, nil
}

// Embed returns a copy of data with rec inserted. An unsupported MIME type
// fails before data is inspected.
func (e *Engine) Embed(data []byte, mimeType string, rec core.Record) ([]byte, error) {
	h, err := e.Lookup(mimeType)
	if err != nil {
		return nil, err
	}
	out, err := h.Embed(data, rec)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", h.Info().Name, err)
	}
	return out, nil
}

// Extract reads back the record Embed wrote.
func (e *Engine) Extract(data []byte, mimeType string) (core.Record, error) {
	h, err := e.Lookup(mimeType)
	if err != nil {
		return core.Record{}, err
	}
	rec, err := h.Extract(data)
	if err != nil {
		return core.Record{}, fmt.Errorf("extract %s: %w", h.Info().Name, err)
	}
	return rec, nil
}

// Detect guesses a MIME type from magic bytes, falling back to the
// extension of filename. It returns "" when nothing matches.
func (e *Engine) Detect(data []byte, filename string) string {
	head := data[:min(len(data), sniffLen)]
	id := core.DetectFormat(head, filename)
	if _, ok := e.handlers[id]; !ok {
		return ""
	}
	return core.CanonicalMIME(id)
}

// Formats describes the registered formats in registration order.
func (e *Engine) Formats() []core.FormatInfo {
	out := make([]core.FormatInfo, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.handlers[id].Info())
	}
	return out
}

var std = New()

// Embed calls Embed on the default engine.
func Embed(data []byte, mimeType string, rec core.Record) ([]byte, error) {
	return std.Embed(data, mimeType, rec)
}

// Extract calls Extract on the default engine.
func Extract(data []byte, mimeType string) (core.Record, error) {
	return std.Extract(data, mimeType)
}

// Detect calls Detect on the default engine.
func Detect(data []byte, filename string) string {
	return std.Detect(data, filename)
}

// Formats calls Formats on the default engine.
func Formats() []core.FormatInfo {
	return std.Formats()
}
