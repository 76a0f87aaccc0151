// Package xmp builds and parses the Adobe XMP packet shared by every
// container carrier.
package xmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Toolkit is written to x:xmptk.
const Toolkit = "media-metadata-embed " + core.Version

// PacketID is the fixed id of the xpacket begin processing instruction.
const PacketID = "W5M0MpCehiHzreSzNTczkc9d"

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// Escape replaces the five XML special characters with entity references.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Build renders rec as an XMP packet. mimeType, when non-empty, is written
// to dc:format.
func Build(rec core.Record, mimeType string) string {
	title := Escape(rec.Title)
	desc := Escape(rec.Description)

	var b strings.Builder
	b.Grow(1024 + len(title)*2 + len(desc))
	b.WriteString("<?xpacket begin=\"\ufeff\" id=\"" + PacketID + "\"?>\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="` + Escape(Toolkit) + `">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`  <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`    xmlns:dc="http://purl.org/dc/elements/1.1/"` + "\n")
	b.WriteString(`    xmlns:photoshop="http://ns.adobe.com/photoshop/1.0/">` + "\n")
	if mimeType != "" {
		fmt.Fprintf(&b, "   <dc:format>%s</dc:format>\n", Escape(mimeType))
	}
	writeAlt(&b, "dc:title", title)
	writeAlt(&b, "dc:description", desc)
	b.WriteString("   <dc:subject>\n    <rdf:Bag>\n")
	for _, k := range rec.CleanKeywords() {
		fmt.Fprintf(&b, "     <rdf:li>%s</rdf:li>\n", Escape(k))
	}
	b.WriteString("    </rdf:Bag>\n   </dc:subject>\n")
	fmt.Fprintf(&b, "   <photoshop:Headline>%s</photoshop:Headline>\n", title)
	b.WriteString("  </rdf:Description>\n </rdf:RDF>\n</x:xmpmeta>\n")
	b.WriteString(`<?xpacket end="w"?>`)
	return b.String()
}

func writeAlt(b *strings.Builder, name, escaped string) {
	fmt.Fprintf(b, "   <%s>\n    <rdf:Alt>\n     <rdf:li xml:lang=\"x-default\">%s</rdf:li>\n    </rdf:Alt>\n   </%s>\n",
		name, escaped, name)
}

const (
	nsDC        = "http://purl.org/dc/elements/1.1/"
	nsRDF       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsPhotoshop = "http://ns.adobe.com/photoshop/1.0/"
	nsXML       = "http://www.w3.org/XML/1998/namespace"
)

// Packet is the subset of an XMP packet the engine reads back.
type Packet struct {
	Format   string
	Headline string
	Record   core.Record
}

// altText collects the alternatives of one language-alternative property.
type altText struct {
	first, def           string
	hasFirst, hasDefault bool
}

// value prefers the x-default alternative and falls back to the first one.
func (a *altText) value() string {
	if a.hasDefault {
		return a.def
	}
	return a.first
}

func (a *altText) add(lang, val string) {
	if !a.hasFirst {
		a.first, a.hasFirst = val, true
	}
	if !a.hasDefault && strings.EqualFold(lang, "x-default") {
		a.def, a.hasDefault = val, true
	}
}

// Parse extracts dc:title, dc:description, dc:subject, dc:format and
// photoshop:Headline from a packet. In a language alternative the
// x-default item wins, else the first item. Surrounding xpacket
// instructions and trailing padding are tolerated.
func Parse(data []byte) (Packet, error) {
	var p Packet
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack   []xml.Name
		text    strings.Builder
		inAlt   bool
		liLang  string
		alts    = map[string]*altText{"title": {}, "description": {}}
		started bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return p, fmt.Errorf("xmp: %w", err)
			}
			if !started {
				return p, fmt.Errorf("xmp: no rdf:Description found")
			}
			p.Record.Title = alts["title"].value()
			p.Record.Description = alts["description"].value()
			return p, nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsRDF && t.Name.Local == "Description" {
				started = true
			}
			if t.Name.Space == nsRDF && t.Name.Local == "Alt" {
				inAlt = true
			}
			if t.Name.Space == nsRDF && t.Name.Local == "li" {
				liLang = lang(t.Attr)
			}
			stack = append(stack, t.Name)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			prop := property(stack)
			val := text.String()
			switch {
			case t.Name.Space == nsRDF && t.Name.Local == "li":
				if a, ok := alts[prop]; ok && inAlt {
					a.add(liLang, val)
				} else if prop == "subject" {
					p.Record.Keywords = append(p.Record.Keywords, val)
				}
			case t.Name.Space == nsRDF && t.Name.Local == "Alt":
				inAlt = false
			case t.Name.Space == nsDC && t.Name.Local == "format":
				p.Format = strings.TrimSpace(val)
			case t.Name.Space == nsPhotoshop && t.Name.Local == "Headline":
				p.Headline = val
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			text.Reset()
		}
	}
}

// lang returns the xml:lang attribute, "" when absent.
func lang(attrs []xml.Attr) string {
	for _, a := range attrs {
		if a.Name.Local == "lang" && (a.Name.Space == nsXML || a.Name.Space == "xml") {
			return a.Value
		}
	}
	return ""
}

// property returns the local name of the nearest dc: ancestor in stack.
func property(stack []xml.Name) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Space == nsDC {
			return stack[i].Local
		}
	}
	return ""
}
