package core

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// FormatID enumerates every format the engine can embed into.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtMP4  FormatID = "mp4"
	FmtMOV  FormatID = "mov"
	FmtMP3  FormatID = "mp3"

	FmtUnknown FormatID = "unknown"
)

// mimeMap maps lowercase MIME types to format IDs.
var mimeMap = map[string]FormatID{
	"image/png":       FmtPNG,
	"image/jpeg":      FmtJPEG,
	"image/jpg":       FmtJPEG,
	"video/mp4":       FmtMP4,
	"video/quicktime": FmtMOV,
	"audio/mpeg":      FmtMP3,
	"audio/mp3":       FmtMP3,
}

// canonicalMIME is the type written into dc:format and HTTP responses.
var canonicalMIME = map[FormatID]string{
	FmtPNG:  "image/png",
	FmtJPEG: "image/jpeg",
	FmtMP4:  "video/mp4",
	FmtMOV:  "video/quicktime",
	FmtMP3:  "audio/mpeg",
}

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".png":  FmtPNG,
	".mp4":  FmtMP4,
	".m4v":  FmtMP4,
	".mov":  FmtMOV,
	".qt":   FmtMOV,
	".mp3":  FmtMP3,
}

// FormatForMIME resolves a declared media type. Matching is case-insensitive
// and parameters such as "; charset=binary" are ignored.
func FormatForMIME(mimeType string) FormatID {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if id, ok := mimeMap[mt]; ok {
		return id
	}
	return FmtUnknown
}

// CanonicalMIME returns the preferred MIME type for id, or "" if unknown.
func CanonicalMIME(id FormatID) string {
	return canonicalMIME[id]
}

// DetectFormat returns the FormatID for a buffer, first by magic bytes and
// falling back to the extension of name.
func DetectFormat(head []byte, name string) FormatID {
	if id := detectMagic(head); id != FmtUnknown {
		return id
	}
	if name != "" {
		if id, ok := extMap[strings.ToLower(filepath.Ext(name))]; ok {
			return id
		}
	}
	return FmtUnknown
}

func detectMagic(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FmtPNG
	// MP4/MOV: ftyp box at offset 4
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return detectMP4Subtype(b)
	// QuickTime files without ftyp usually open with a moov, wide or mdat box
	case len(b) >= 8 && (bytes.Equal(b[4:8], []byte("moov")) ||
		bytes.Equal(b[4:8], []byte("wide")) || bytes.Equal(b[4:8], []byte("mdat"))):
		return FmtMOV
	// MP3: ID3 tag or frame sync
	case bytes.HasPrefix(b, []byte("ID3")):
		return FmtMP3
	case b[0] == 0xFF && (b[1]&0xE0 == 0xE0):
		return FmtMP3
	}
	return FmtUnknown
}

func detectMP4Subtype(b []byte) FormatID {
	if len(b) < 12 {
		return FmtMP4
	}
	if string(b[8:12]) == "qt  " {
		return FmtMOV
	}
	return FmtMP4
}
