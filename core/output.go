package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"golang.org/x/term"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON   bool
	Writer io.Writer

	label, value, good, warn, bad *color.Color
}

// NewPrinter creates a Printer writing to w. Colour is used only when w is
// a terminal and JSON mode is off.
func NewPrinter(w io.Writer, jsonMode bool) *Printer {
	p := &Printer{
		JSON:   jsonMode,
		Writer: w,
		label:  color.New(color.FgCyan, color.Bold),
		value:  color.New(color.FgWhite),
		good:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
	}
	p.SetColor(!jsonMode && IsTerminal(w))
	return p
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetColor forces colour on or off.
func (p *Printer) SetColor(on bool) {
	for _, c := range []*color.Color{p.label, p.value, p.good, p.warn, p.bad} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

type recordOutput struct {
	File   string `json:"file,omitempty"`
	Format string `json:"format"`
	Record
}

// PrintRecord renders the record found in file.
func (p *Printer) PrintRecord(file, mime string, rec Record) error {
	if p.JSON {
		return p.printJSON(recordOutput{File: file, Format: mime, Record: rec})
	}
	if file != "" {
		p.field("File", file)
	}
	p.field("Format", mime)
	if rec.Equal(Record{}) {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		return nil
	}
	fmt.Fprintln(p.Writer)
	p.field("Title", rec.Title)
	p.field("Description", rec.Description)
	kws := rec.CleanKeywords()
	p.field("Keywords", fmt.Sprintf("%d", len(kws)))
	for i, k := range kws {
		fmt.Fprintf(p.Writer, "  %3d. %s\n", i+1, p.value.Sprint(k))
	}
	return nil
}

// PrintFields renders a flat key/value listing, such as decoded EXIF tags.
func (p *Printer) PrintFields(title string, fields map[string]string, order []string) error {
	if p.JSON {
		return p.printJSON(fields)
	}
	fmt.Fprintf(p.Writer, "── %s ──\n", title)
	for _, k := range order {
		fmt.Fprintf(p.Writer, "  %-28s %s\n", p.label.Sprint(k+":"), fields[k])
	}
	return nil
}

// PrintFormats renders the supported format table.
func (p *Printer) PrintFormats(infos []FormatInfo) error {
	if p.JSON {
		return p.printJSON(infos)
	}
	tw := tabwriter.NewWriter(p.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tMIME\tEXTENSIONS\tCARRIERS")
	for _, f := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name,
			strings.Join(f.MIMETypes, ", "),
			strings.Join(f.Extensions, " "),
			strings.Join(f.Carriers, ", "))
	}
	return tw.Flush()
}

func (p *Printer) field(k, v string) {
	fmt.Fprintf(p.Writer, "%-13s %s\n", p.label.Sprint(k+":"), v)
}

func (p *Printer) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.Writer, string(b))
	return err
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, p.good.Sprint("✓ ")+msg)
	}
}

// PrintWarning prints a warning line (suppressed in JSON mode).
func (p *Printer) PrintWarning(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, p.warn.Sprint("! ")+msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("✗ Error: ")+msg)
}

// SplitKeywords flattens repeated and comma-separated keyword values into
// one list, in order, skipping blanks.
func SplitKeywords(values []string) []string {
	var out []string
	for _, v := range values {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// ResolveOutPath returns dst if non-empty, otherwise src (in-place).
func ResolveOutPath(src, dst string) string {
	if dst == "" {
		return src
	}
	return dst
}
