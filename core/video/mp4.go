package video

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/box"
	"github.com/ankit-chaubey/media-metadata-embed/core/xmp"
)

// XMPUUID is the user type of the uuid box that carries an XMP packet.
var XMPUUID = uuid.MustParse("BE7ACADA-0754-11D9-8514-000595420030")

var (
	typeMoov = box.T("moov")
	typeFree = box.T("free")
	typeUUID = box.T("uuid")
	typeUdta = box.T("udta")
	typeMeta = box.T("meta")
	typeHdlr = box.T("hdlr")
	typeIlst = box.T("ilst")
	typeData = box.T("data")
	typeName = box.T("\xa9nam")
	typeDesc = box.T("\xa9des")
)

// metaSkip is the version/flags word between a meta header and its children.
var metaSkip = map[box.Type]int{typeMeta: 4}

// ─── Box builders ────────────────────────────────────────────────────────────

func xmpBox(packet string) *box.Box {
	return &box.Box{Type: typeUUID, Prefix: XMPUUID[:], Payload: []byte(packet)}
}

// hdlrBox is a 32-byte handler box: handler type "mdir" at offset 16,
// manufacturer "appl" at offset 20.
func hdlrBox() *box.Box {
	p := make([]byte, 24)
	copy(p[8:12], "mdir")
	copy(p[12:16], "appl")
	return box.Leaf(typeHdlr, p)
}

// ilstItem wraps val in a data box: type indicator 1 (UTF-8), zero locale.
func ilstItem(t box.Type, val string) *box.Box {
	data := &box.Box{Type: typeData, Prefix: []byte{0, 0, 0, 1, 0, 0, 0, 0}, Payload: []byte(val)}
	return box.Container(t, data)
}

func ilstBox(rec core.Record) *box.Box {
	return box.Container(typeIlst,
		ilstItem(typeName, rec.Title),
		ilstItem(typeDesc, rec.Description),
	)
}

func metaBox(rec core.Record) *box.Box {
	return &box.Box{
		Type:     typeMeta,
		Prefix:   make([]byte, 4),
		Children: []*box.Box{hdlrBox(), ilstBox(rec)},
	}
}

func udtaBox(rec core.Record) *box.Box {
	return box.Container(typeUdta, metaBox(rec))
}

// ─── Embed ───────────────────────────────────────────────────────────────────

func findMoov(top []box.Header) (box.Header, error) {
	for _, h := range top {
		if h.Type == typeMoov {
			return h, nil
		}
	}
	return box.Header{}, core.Malformed("mp4", -1, "no top-level moov box")
}

// locateMoov scans top-level boxes for moov.
func locateMoov(data []byte) (box.Header, error) {
	top, err := box.TopLevel(data)
	if err != nil {
		return box.Header{}, err
	}
	return findMoov(top)
}

// EmbedMP4 overwrites the original moov with a free box of the same size and
// appends a rebuilt moov holding the original children, an XMP uuid box and
// the title and description in udta/meta/ilst. Media data never moves, so
// absolute chunk offsets stay valid. A last box whose size field is 0 gets
// its explicit size, so it no longer runs over the appended moov.
func EmbedMP4(data []byte, rec core.Record, mimeType string) ([]byte, error) {
	top, err := box.TopLevel(data)
	if err != nil {
		return nil, err
	}
	moov, err := findMoov(top)
	if err != nil {
		return nil, err
	}
	last := top[len(top)-1]
	if last.ToEOF && uint64(last.Size) > math.MaxUint32 {
		return nil, core.Malformed("mp4", int64(last.Offset), "box %q runs to end of file and is too large for a 32-bit size", last.Type.String())
	}
	children, merged, err := keptChildren(data, moov, rec)
	if err != nil {
		return nil, err
	}

	newMoov := &box.Box{
		Type:     typeMoov,
		Payload:  children,
		Children: []*box.Box{xmpBox(xmp.Build(rec, mimeType))},
	}
	if !merged {
		newMoov.Children = append(newMoov.Children, udtaBox(rec))
	}

	out := make([]byte, len(data), len(data)+newMoov.Size())
	copy(out, data)
	if last.ToEOF {
		binary.BigEndian.PutUint32(out[last.Offset:], uint32(last.Size))
	}
	free := out[moov.Offset:moov.End()]
	clear(free)
	box.PutHeader(free, uint32(moov.Size), typeFree)

	out, err = newMoov.AppendTo(out)
	if err != nil {
		return nil, &core.PacketTooLargeError{Carrier: "mp4 moov", Size: newMoov.Size(), Limit: 1<<32 - 1}
	}
	return out, nil
}

// keptChildren returns the raw moov children without XMP uuid boxes, with
// rec merged into the first udta that parses. merged is false when no udta
// took the record.
func keptChildren(data []byte, moov box.Header, rec core.Record) ([]byte, bool, error) {
	hs, err := box.Children(data, moov.DataOffset(), moov.End())
	if err != nil {
		return nil, false, err
	}
	kept := make([]byte, 0, moov.Size)
	merged := false
	for _, h := range hs {
		switch {
		case isXMPBox(data, h):
			continue
		case h.Type == typeUdta && !merged:
			if b, ok := mergeUdta(data, h, rec); ok {
				kept = append(kept, b...)
				merged = true
				continue
			}
			kept = append(kept, h.Raw(data)...)
		default:
			kept = append(kept, h.Raw(data)...)
		}
	}
	return kept, merged, nil
}

func isXMPBox(data []byte, h box.Header) bool {
	return h.Type == typeUUID && h.HasPrefix(data, XMPUUID[:])
}

// mergeUdta writes rec into the first mdir meta of udta, or appends a new
// meta box when there is none. Every other child is copied verbatim. ok is
// false when udta cannot be parsed.
func mergeUdta(data []byte, udta box.Header, rec core.Record) ([]byte, bool) {
	kids, err := box.Children(data, udta.DataOffset(), udta.End())
	if err != nil {
		return nil, false
	}
	var body []byte
	merged := false
	for _, k := range kids {
		if !merged && k.Type == typeMeta && isMdirMeta(data, k) {
			if m, err := mergeMeta(data, k, rec); err == nil {
				body = append(body, m...)
				merged = true
				continue
			}
		}
		body = append(body, k.Raw(data)...)
	}
	if !merged {
		if body, err = metaBox(rec).AppendTo(body); err != nil {
			return nil, false
		}
	}
	b, err := box.Leaf(typeUdta, body).Encode()
	if err != nil {
		return nil, false
	}
	return b, true
}

// mergeMeta rewrites the ilst of an mdir meta box. The version/flags word
// and every child other than ilst are kept.
func mergeMeta(data []byte, meta box.Header, rec core.Record) ([]byte, error) {
	start := meta.DataOffset() + 4
	kids, err := box.Children(data, start, meta.End())
	if err != nil {
		return nil, err
	}
	var body []byte
	found := false
	for _, k := range kids {
		if k.Type != typeIlst || found {
			body = append(body, k.Raw(data)...)
			continue
		}
		ilst, err := mergeIlst(data, k, rec)
		if err != nil {
			return nil, err
		}
		body = append(body, ilst...)
		found = true
	}
	if !found {
		if body, err = ilstBox(rec).AppendTo(body); err != nil {
			return nil, err
		}
	}
	return (&box.Box{Type: typeMeta, Prefix: data[meta.DataOffset():start], Payload: body}).Encode()
}

// mergeIlst replaces the first title and description items in place,
// drops repeats of them, and appends whichever is missing. Other items
// (artist, encoder, cover art, ...) keep their bytes.
func mergeIlst(data []byte, ilst box.Header, rec core.Record) ([]byte, error) {
	items, err := box.Children(data, ilst.DataOffset(), ilst.End())
	if err != nil {
		return nil, err
	}
	ours := map[box.Type]string{typeName: rec.Title, typeDesc: rec.Description}
	written := map[box.Type]bool{}
	var body []byte
	for _, it := range items {
		val, mine := ours[it.Type]
		switch {
		case !mine:
			body = append(body, it.Raw(data)...)
		case written[it.Type]:
			// repeat of an item already written
		default:
			if body, err = ilstItem(it.Type, val).AppendTo(body); err != nil {
				return nil, err
			}
			written[it.Type] = true
		}
	}
	for _, t := range []box.Type{typeName, typeDesc} {
		if written[t] {
			continue
		}
		if body, err = ilstItem(t, ours[t]).AppendTo(body); err != nil {
			return nil, err
		}
	}
	return box.Leaf(typeIlst, body).Encode()
}

func isMdirMeta(data []byte, meta box.Header) bool {
	start := meta.DataOffset() + 4
	if start > meta.End() {
		return false
	}
	hdlr, ok, err := box.Find(data, start, meta.End(), typeHdlr)
	if err != nil || !ok {
		return false
	}
	d := hdlr.Data(data)
	return len(d) >= 12 && string(d[8:12]) == "mdir"
}

// ─── Extract ─────────────────────────────────────────────────────────────────

// ExtractMP4 reads the XMP uuid box from the first moov. Without one it
// falls back to the ilst title and description items.
func ExtractMP4(data []byte) (core.Record, error) {
	moov, err := locateMoov(data)
	if err != nil {
		return core.Record{}, err
	}
	hs, err := box.Children(data, moov.DataOffset(), moov.End())
	if err != nil {
		return core.Record{}, err
	}
	for _, h := range hs {
		if !isXMPBox(data, h) {
			continue
		}
		p, err := xmp.Parse(h.Data(data)[len(XMPUUID):])
		if err != nil {
			return core.Record{}, &core.CollaboratorError{Op: "xmp parse", Err: err}
		}
		return p.Record, nil
	}

	var rec core.Record
	ilst, ok, err := box.FindPath(data, moov.DataOffset(), moov.End(), metaSkip, typeUdta, typeMeta, typeIlst)
	if err != nil || !ok {
		return rec, err
	}
	rec.Title, err = ilstText(data, ilst, typeName)
	if err != nil {
		return rec, err
	}
	rec.Description, err = ilstText(data, ilst, typeDesc)
	return rec, err
}

// ilstText returns the UTF-8 value of an ilst item, or "" if absent.
func ilstText(data []byte, ilst box.Header, t box.Type) (string, error) {
	item, ok, err := box.Find(data, ilst.DataOffset(), ilst.End(), t)
	if err != nil || !ok {
		return "", err
	}
	d, ok, err := box.Find(data, item.DataOffset(), item.End(), typeData)
	if err != nil || !ok {
		return "", err
	}
	v := d.Data(data)
	if len(v) < 8 {
		return "", core.Malformed("mp4", int64(d.Offset), "data box too short")
	}
	return string(bytes.TrimRight(v[8:], "\x00")), nil
}
