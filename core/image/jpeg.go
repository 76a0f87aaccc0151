package image

import (
	"bytes"
	"slices"
	"strings"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/jpg"
	"github.com/ankit-chaubey/media-metadata-embed/core/xmp"
)

// keywordSep joins keywords in the EXIF XPKeywords field.
const keywordSep = ";"

// EmbedJPEG writes rec into the EXIF block, then inserts a single XMP APP1
// segment immediately before Start-of-Scan. Earlier XMP APP1 segments are
// dropped.
func EmbedJPEG(data []byte, rec core.Record) ([]byte, error) {
	withExif, err := writeEXIF(data, rec)
	if err != nil {
		return nil, err
	}
	return injectXMP(withExif, xmp.Build(rec, core.CanonicalMIME(core.FmtJPEG)))
}

func writeEXIF(data []byte, rec core.Record) ([]byte, error) {
	b, err := jpg.Load(data)
	if err != nil {
		return nil, err
	}
	if err := b.SetASCII(jpg.TagImageDescription, rec.Title); err != nil {
		return nil, err
	}
	xp := []struct {
		tag string
		val string
	}{
		{jpg.TagXPTitle, rec.Title},
		{jpg.TagXPComment, rec.Description},
		{jpg.TagXPKeywords, strings.Join(rec.CleanKeywords(), keywordSep)},
	}
	for _, f := range xp {
		if err := b.SetXP(f.tag, f.val); err != nil {
			return nil, err
		}
	}
	raw, err := jpg.Dump(b)
	if err != nil {
		return nil, err
	}
	return jpg.Insert(raw, data)
}

func xmpAPP1Payload(packet string) []byte {
	p := make([]byte, 0, len(jpg.XMPSignature)+1+len(packet))
	p = append(p, jpg.XMPSignature...)
	p = append(p, 0)
	return append(p, packet...)
}

func injectXMP(data []byte, packet string) ([]byte, error) {
	payload := xmpAPP1Payload(packet)
	if len(payload) > jpg.MaxSegmentData {
		return nil, &core.PacketTooLargeError{Carrier: "jpeg XMP APP1", Size: len(payload), Limit: jpg.MaxSegmentData}
	}
	segs, err := jpg.Split(data)
	if err != nil {
		return nil, err
	}
	segs = slices.DeleteFunc(segs, func(s jpg.Segment) bool { return s.IsXMP() })
	// Split always ends with SOS.
	segs = slices.Insert(segs, len(segs)-1, jpg.Segment{Marker: jpg.MarkerAPP1, Data: payload})
	return jpg.Join(segs)
}

// ExtractJPEG reads the XMP APP1 segment. Without one it falls back to the
// EXIF ImageDescription and XP* fields.
func ExtractJPEG(data []byte) (core.Record, error) {
	segs, err := jpg.Split(data)
	if err != nil {
		return core.Record{}, err
	}
	for _, s := range segs {
		if !s.IsXMP() {
			continue
		}
		packet := bytes.TrimPrefix(s.Data[len(jpg.XMPSignature):], []byte{0})
		p, err := xmp.Parse(packet)
		if err != nil {
			return core.Record{}, &core.CollaboratorError{Op: "xmp parse", Err: err}
		}
		return p.Record, nil
	}

	txt, ok, err := jpg.ReadText(data)
	if err != nil || !ok {
		return core.Record{}, err
	}
	rec := core.Record{Title: txt.XPTitle, Description: txt.XPComment}
	if rec.Title == "" {
		rec.Title = txt.ImageDescription
	}
	if txt.XPKeywords != "" {
		rec.Keywords = strings.Split(txt.XPKeywords, keywordSep)
	}
	return rec, nil
}
