package audio

import (
	"bytes"
	"errors"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/xmp"
)

const (
	id3HeaderSize  = 10
	id3FooterFlag  = 0x10
	keywordsFrame  = "keywords"
	keywordSep     = ";"
	xmpPrivOwner   = "XMP"
	commentLang    = "eng"
	framePrivate   = "PRIV"
	frameUserText  = "TXXX"
	frameComment   = "COMM"
	frameTitle     = "TIT2"
	id3WireVersion = 4
)

// id3TagSize returns the number of bytes taken by a leading ID3v2 tag,
// footer included, or 0 when data does not start with one.
func id3TagSize(data []byte) (int, error) {
	if len(data) < id3HeaderSize || string(data[:3]) != "ID3" {
		return 0, nil
	}
	var size int
	for _, b := range data[6:10] {
		if b&0x80 != 0 {
			return 0, core.Malformed("mp3", 6, "ID3 size is not synchsafe")
		}
		size = size<<7 | int(b)
	}
	total := id3HeaderSize + size
	if data[5]&id3FooterFlag != 0 {
		total += id3HeaderSize
	}
	if total > len(data) {
		return 0, core.Malformed("mp3", 0, "ID3 tag of %d bytes overruns the file", total)
	}
	return total, nil
}

func xmpPrivBody(packet string) []byte {
	b := make([]byte, 0, len(xmpPrivOwner)+1+len(packet))
	b = append(b, xmpPrivOwner...)
	b = append(b, 0)
	return append(b, packet...)
}

func isXMPPriv(f id3v2.Framer) ([]byte, bool) {
	u, ok := f.(id3v2.UnknownFrame)
	if !ok {
		return nil, false
	}
	prefix := []byte(xmpPrivOwner + "\x00")
	if !bytes.HasPrefix(u.Body, prefix) {
		return nil, false
	}
	return u.Body[len(prefix):], true
}

// EmbedMP3 parses the existing ID3v2 tag, replaces the title, comment,
// keywords and XMP frames, and writes the tag as ID3v2.4 in front of the
// original audio bytes.
func EmbedMP3(data []byte, rec core.Record) ([]byte, error) {
	oldSize, err := id3TagSize(data)
	if err != nil {
		return nil, err
	}
	t := id3v2.NewEmptyTag()
	if oldSize > 0 {
		if t, err = id3v2.ParseReader(bytes.NewReader(data[:oldSize]), id3v2.Options{Parse: true}); err != nil {
			return nil, &core.CollaboratorError{Op: "id3 parse", Err: err}
		}
	}
	t.SetVersion(id3WireVersion)
	t.SetDefaultEncoding(id3v2.EncodingUTF8)

	t.DeleteFrames(frameTitle)
	t.SetTitle(rec.Title)

	t.DeleteFrames(frameComment)
	t.AddCommentFrame(id3v2.CommentFrame{
		Encoding: id3v2.EncodingUTF8,
		Language: commentLang,
		Text:     rec.Description,
	})

	var keepTXXX []id3v2.Framer
	for _, f := range t.GetFrames(frameUserText) {
		if u, ok := f.(id3v2.UserDefinedTextFrame); ok && strings.EqualFold(u.Description, keywordsFrame) {
			continue
		}
		keepTXXX = append(keepTXXX, f)
	}
	t.DeleteFrames(frameUserText)
	for _, f := range keepTXXX {
		t.AddFrame(frameUserText, f)
	}
	t.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: keywordsFrame,
		Value:       strings.Join(rec.CleanKeywords(), keywordSep),
	})

	var keepPRIV []id3v2.Framer
	for _, f := range t.GetFrames(framePrivate) {
		if _, ok := isXMPPriv(f); !ok {
			keepPRIV = append(keepPRIV, f)
		}
	}
	t.DeleteFrames(framePrivate)
	for _, f := range keepPRIV {
		t.AddFrame(framePrivate, f)
	}
	t.AddFrame(framePrivate, id3v2.UnknownFrame{Body: xmpPrivBody(xmp.Build(rec, core.CanonicalMIME(core.FmtMP3)))})

	var buf bytes.Buffer
	buf.Grow(t.Size() + len(data) - oldSize)
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, &core.CollaboratorError{Op: "id3 write", Err: err}
	}
	buf.Write(data[oldSize:])
	return buf.Bytes(), nil
}

// ExtractMP3 reads the XMP PRIV frame. Without one it falls back to the
// title and comment as read by dhowden/tag plus the keywords TXXX frame.
func ExtractMP3(data []byte) (core.Record, error) {
	oldSize, err := id3TagSize(data)
	if err != nil {
		return core.Record{}, err
	}
	if oldSize == 0 {
		return core.Record{}, nil
	}
	t, err := id3v2.ParseReader(bytes.NewReader(data[:oldSize]), id3v2.Options{Parse: true})
	if err != nil {
		return core.Record{}, &core.CollaboratorError{Op: "id3 parse", Err: err}
	}
	for _, f := range t.GetFrames(framePrivate) {
		packet, ok := isXMPPriv(f)
		if !ok {
			continue
		}
		p, err := xmp.Parse(packet)
		if err != nil {
			return core.Record{}, &core.CollaboratorError{Op: "xmp parse", Err: err}
		}
		return p.Record, nil
	}

	var rec core.Record
	m, err := tag.ReadFrom(bytes.NewReader(data))
	switch {
	case errors.Is(err, tag.ErrNoTagsFound):
		return rec, nil
	case err != nil:
		return rec, &core.CollaboratorError{Op: "tag read", Err: err}
	}
	rec.Title = m.Title()
	rec.Description = m.Comment()
	for _, f := range t.GetFrames(frameUserText) {
		if u, ok := f.(id3v2.UserDefinedTextFrame); ok && strings.EqualFold(u.Description, keywordsFrame) && u.Value != "" {
			rec.Keywords = strings.Split(u.Value, keywordSep)
		}
	}
	return rec, nil
}
