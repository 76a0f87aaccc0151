package image

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ankit-chaubey/media-metadata-embed/core"
	"github.com/ankit-chaubey/media-metadata-embed/core/xmp"
)

const (
	pngSignature = "\x89PNG\r\n\x1a\n"
	// ihdrEnd is the offset just past the signature and the 25-byte IHDR chunk.
	ihdrEnd = 33
	// xmpKeyword identifies the iTXt chunk that carries XMP.
	xmpKeyword = "XML:com.adobe.xmp"
)

type pngChunk struct {
	offset int
	typ    string
	data   []byte
}

// end returns the offset just past the chunk's CRC.
func (c pngChunk) end() int { return c.offset + 12 + len(c.data) }

func (c pngChunk) isXMP() bool {
	return c.typ == "iTXt" && bytes.HasPrefix(c.data, []byte(xmpKeyword+"\x00"))
}

// checkPNGHeader requires the signature followed by an IHDR chunk of
// length 13.
func checkPNGHeader(data []byte) error {
	if len(data) < ihdrEnd {
		return core.Malformed("png", -1, "file too short for signature and IHDR (%d bytes)", len(data))
	}
	if string(data[:8]) != pngSignature {
		return core.Malformed("png", 0, "bad signature")
	}
	if n := binary.BigEndian.Uint32(data[8:12]); n != 13 || string(data[12:16]) != "IHDR" {
		return core.Malformed("png", 8, "first chunk is not a 13-byte IHDR")
	}
	return nil
}

// readPNGChunks walks the chunks after IHDR while they fit in the buffer,
// stopping after IEND. The returned offset is where the walk stopped;
// bytes from there on are kept verbatim by the embedder.
func readPNGChunks(data []byte) ([]pngChunk, int) {
	var chunks []pngChunk
	pos := ihdrEnd
	for pos+12 <= len(data) {
		n := binary.BigEndian.Uint32(data[pos : pos+4])
		if uint64(pos)+12+uint64(n) > uint64(len(data)) {
			break
		}
		c := pngChunk{offset: pos, typ: string(data[pos+4 : pos+8]), data: data[pos+8 : pos+8+int(n)]}
		chunks = append(chunks, c)
		pos = c.end()
		if c.typ == "IEND" {
			break
		}
	}
	return chunks, pos
}

// appendPNGChunk appends length, type, data and CRC.
func appendPNGChunk(dst []byte, typ string, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, typ...)
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, crc32PNG([]byte(typ), data))
}

// xmpITXtPayload is keyword, NUL, then four zero bytes (compression flag,
// compression method, empty language tag, empty translated keyword), then
// the packet.
func xmpITXtPayload(packet string) []byte {
	p := make([]byte, 0, len(xmpKeyword)+5+len(packet))
	p = append(p, xmpKeyword...)
	p = append(p, 0, 0, 0, 0, 0)
	return append(p, packet...)
}

// ─── Embed ───────────────────────────────────────────────────────────────────

// EmbedPNG inserts an XMP iTXt chunk right after IHDR. Earlier XMP iTXt
// chunks found by the walk are removed; every other byte is kept in order,
// including a truncated or IEND-less tail.
func EmbedPNG(data []byte, rec core.Record) ([]byte, error) {
	if err := checkPNGHeader(data); err != nil {
		return nil, err
	}
	chunks, stop := readPNGChunks(data)

	payload := xmpITXtPayload(xmp.Build(rec, core.CanonicalMIME(core.FmtPNG)))
	if uint64(len(payload)) > 0x7FFFFFFF {
		return nil, &core.PacketTooLargeError{Carrier: "png iTXt", Size: len(payload), Limit: 0x7FFFFFFF}
	}

	out := make([]byte, 0, len(data)+12+len(payload))
	out = append(out, data[:ihdrEnd]...)
	out = appendPNGChunk(out, "iTXt", payload)
	for _, c := range chunks {
		if c.isXMP() {
			continue
		}
		out = append(out, data[c.offset:c.end()]...)
	}
	return append(out, data[stop:]...), nil
}

// ─── Extract ─────────────────────────────────────────────────────────────────

// ExtractPNG parses the first XMP iTXt chunk. A PNG without one yields an
// empty record.
func ExtractPNG(data []byte) (core.Record, error) {
	if err := checkPNGHeader(data); err != nil {
		return core.Record{}, err
	}
	chunks, _ := readPNGChunks(data)
	for _, c := range chunks {
		if !c.isXMP() {
			continue
		}
		text, err := itxtText(c)
		if err != nil {
			return core.Record{}, err
		}
		p, err := xmp.Parse(text)
		if err != nil {
			return core.Record{}, &core.CollaboratorError{Op: "xmp parse", Err: err}
		}
		return p.Record, nil
	}
	return core.Record{}, nil
}

// itxtText returns the decoded text field of an iTXt chunk.
func itxtText(c pngChunk) ([]byte, error) {
	d := c.data
	k := bytes.IndexByte(d, 0)
	if k < 0 || k+3 > len(d) {
		return nil, core.Malformed("png", int64(c.offset), "iTXt header truncated")
	}
	compressed := d[k+1] == 1
	rest := d[k+3:]
	// language tag, then translated keyword, both NUL-terminated
	for i := 0; i < 2; i++ {
		z := bytes.IndexByte(rest, 0)
		if z < 0 {
			return nil, core.Malformed("png", int64(c.offset), "iTXt header truncated")
		}
		rest = rest[z+1:]
	}
	if !compressed {
		return rest, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, &core.CollaboratorError{Op: "iTXt inflate", Err: err}
	}
	defer zr.Close()
	text, err := io.ReadAll(zr)
	if err != nil {
		return nil, &core.CollaboratorError{Op: "iTXt inflate", Err: fmt.Errorf("chunk at %d: %w", c.offset, err)}
	}
	return text, nil
}
