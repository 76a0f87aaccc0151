// Package core defines the shared types, error taxonomy, and format registry
// for the metadata embedding engine.
package core

import "strings"

// Record is the metadata written into a media file.
type Record struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"` // most relevant first
}

// CleanKeywords returns the keywords trimmed, with blank entries dropped.
// Order is preserved. Every carrier writes this list, so padding and blank
// entries do not survive an embed: Extract returns the cleaned list, not the
// original Keywords.
func (r Record) CleanKeywords() []string {
	out := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Equal reports whether two records carry the same title, description and
// cleaned keyword list. It compares what a carrier can hold; a record with
// padded or blank keywords is Equal to its extracted copy but not == to it.
func (r Record) Equal(o Record) bool {
	if r.Title != o.Title || r.Description != o.Description {
		return false
	}
	a, b := r.CleanKeywords(), o.CleanKeywords()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FormatInfo describes what a format embedder supports.
type FormatInfo struct {
	ID         FormatID `json:"id"`
	Name       string   `json:"name"`       // "JPEG"
	Extensions []string `json:"extensions"` // [".jpg", ".jpeg"]
	MediaType  string   `json:"media_type"` // "image" | "audio" | "video"
	MIMETypes  []string `json:"mime_types"` // first entry is canonical
	Carriers   []string `json:"carriers"`   // metadata structures written
	Notes      string   `json:"notes,omitempty"`
}

// Embedder is the interface every supported container implements.
//
// Embed returns a freshly allocated buffer; data is never modified.
// Extract reads back what Embed wrote, using the same structural rules.
type Embedder interface {
	Embed(data []byte, rec Record) ([]byte, error)
	Extract(data []byte) (Record, error)
	Info() FormatInfo
}
