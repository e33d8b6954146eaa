package fcb

import (
	"bufio"
	"fmt"
	"io"
	"unicode"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
)

// Dump writes to w a readable representation of the container decoded from
// r. Names known to the registry are printed next to their hashes.
func (d Decoder) Dump(w io.Writer, r io.Reader) (warn, err error) {
	if r == nil {
		return nil, errors.New("nil reader")
	}
	if w == nil {
		return nil, errors.New("nil writer")
	}
	if d.Classes == nil {
		d.Classes = classes.Builtin()
	}

	f, warn, err := d.decode(r)
	if err != nil {
		return warn, err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Version: %d", headerVersion)
	fmt.Fprintf(bw, "\nCompressed: %t", f.Compressed)
	fmt.Fprintf(bw, "\nRoots: %d {", len(f.Roots))
	for i, root := range f.Roots {
		d.dumpNode(bw, 1, i, root)
	}
	fmt.Fprint(bw, "\n}\n")

	bw.Flush()
	return warn, nil
}

func (d Decoder) dumpNode(w *bufio.Writer, indent, i int, node *fcbfile.Node) {
	dumpNewline(w, indent)
	if i >= 0 {
		fmt.Fprintf(w, "#%d: ", i)
	}
	dumpName(w, d.Classes, node.Tag)
	if node.Raw != nil {
		w.WriteString(" (opaque) ")
		dumpBytes(w, indent, node.Raw)
		return
	}
	w.WriteString(" {")
	for _, attr := range node.Attrs {
		dumpNewline(w, indent+1)
		dumpName(w, d.Classes, attr.Hash)
		fmt.Fprintf(w, ": %s ", attr.Value.Kind())
		switch v := attr.Value.(type) {
		case fcbfile.ValueString:
			dumpString(w, indent+1, string(v))
		case fcbfile.ValueBinHex:
			dumpBytes(w, indent+1, v)
		default:
			w.WriteString(v.String())
		}
	}
	if n := node.NumChildren(); n > 0 {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Children: %d {", n)
		for i, child := range node.Children() {
			d.dumpNode(w, indent+2, i, child)
		}
		dumpNewline(w, indent+1)
		w.WriteByte('}')
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpName(w *bufio.Writer, reg *classes.Registry, hash uint32) {
	if name, ok := reg.Name(hash); ok {
		fmt.Fprintf(w, "%s (%s)", name, fcbfile.FormatHash(hash))
		return
	}
	w.WriteString(fcbfile.FormatHash(hash))
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
}

func dumpString(w *bufio.Writer, indent int, s string) {
	for _, r := range s {
		if !unicode.IsGraphic(r) {
			dumpBytes(w, indent, []byte(s))
			return
		}
	}
	fmt.Fprintf(w, "(len:%d) %q", len(s), s)
}

func dumpBytes(w *bufio.Writer, indent int, b []byte) {
	fmt.Fprintf(w, "(len:%d)", len(b))
	const width = 16
	for j := 0; j < len(b); j += width {
		row := b[j:]
		if len(row) > width {
			row = row[:width]
		}
		dumpNewline(w, indent+1)
		w.WriteString("| ")
		for i := 0; i < width; i++ {
			if i < len(row) {
				fmt.Fprintf(w, "%02x ", row[i])
			} else {
				w.WriteString("   ")
			}
		}
		w.WriteByte('|')
		for _, c := range row {
			if 32 <= c && c <= 126 {
				w.WriteByte(c)
			} else {
				w.WriteByte('.')
			}
		}
		w.WriteByte('|')
	}
}
