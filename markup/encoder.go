package markup

import (
	"bufio"
	"errors"
	"io"
	"strconv"
)

// WriteTo encodes the Document to w. Tags and attributes with invalid
// names are skipped, and reported in doc.Warnings.
func (doc *Document) WriteTo(w io.Writer) (n int64, err error) {
	if w == nil {
		return 0, errors.New("writer is nil")
	}

	doc.Warnings = doc.Warnings[:0]
	if doc.Root == nil {
		return 0, errors.New("document has no root tag")
	}

	e := &encoder{
		Writer: bufio.NewWriter(w),
		doc:    doc,
	}

	e.writeString(doc.Prefix)
	if doc.Decl != "" {
		e.writeString("<?")
		e.writeString(doc.Decl)
		e.writeString("?>")
		if doc.Prefix != "" || doc.Indent != "" {
			e.writeByte('\n')
			e.writeString(doc.Prefix)
		}
	}
	e.encodeTag(doc.Root, doc.Root.NoIndent)
	e.writeString(doc.Suffix)
	e.flush()

	return e.n, e.err
}

type encoder struct {
	*bufio.Writer
	doc   *Document
	depth int
	n     int64
	err   error
}

func (e *encoder) flush() {
	if e.err != nil {
		return
	}
	e.err = e.Writer.Flush()
}

func (e *encoder) writeByte(b byte) {
	if e.err != nil {
		return
	}
	if e.err = e.Writer.WriteByte(b); e.err == nil {
		e.n++
	}
}

func (e *encoder) writeString(s string) {
	if e.err != nil {
		return
	}
	var n int
	n, e.err = e.Writer.WriteString(s)
	e.n += int64(n)
}

// writeIndent adjusts the depth by delta, then emits a line break and the
// indentation for the new depth. It emits nothing when the document has no
// prettifying whitespace.
func (e *encoder) writeIndent(delta int) {
	e.depth += delta
	if e.doc.Prefix == "" && e.doc.Indent == "" {
		return
	}
	e.writeByte('\n')
	e.writeString(e.doc.Prefix)
	for i := 0; i < e.depth; i++ {
		e.writeString(e.doc.Indent)
	}
}

func validName(s string, typ int) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i], typ) {
			return false
		}
	}
	return true
}

// checkName reports whether s is a valid name of the given type, adding a
// warning if not.
func (e *encoder) checkName(s string, typ int) bool {
	if validName(s, typ) {
		return true
	}
	kind := "tag"
	if typ == nameAttr {
		kind = "attribute"
	}
	e.doc.Warnings = append(e.doc.Warnings, errors.New("invalid "+kind+" name "+strconv.Quote(s)))
	return false
}

// encodeTag writes a tag and its content, skipping the tag entirely if its
// name is invalid.
func (e *encoder) encodeTag(tag *Tag, noindent bool) {
	if tag == nil || !e.checkName(tag.Name, nameTag) {
		return
	}

	e.writeByte('<')
	e.writeString(tag.Name)
	for _, a := range tag.Attr {
		if !e.checkName(a.Name, nameAttr) {
			continue
		}
		e.writeByte(' ')
		e.writeString(a.Name)
		e.writeString(`="`)
		e.writeString(escapeString(a.Value, false))
		e.writeByte('"')
	}
	if tag.Empty {
		e.writeString("/>")
		return
	}
	e.writeByte('>')

	e.writeString(escapeString(tag.Text, true))

	if len(tag.Tags) > 0 {
		sub := noindent || tag.NoIndent
		wrote := false
		for _, child := range tag.Tags {
			if child == nil {
				continue
			}
			if !e.checkName(child.Name, nameTag) {
				continue
			}
			if !sub {
				if !wrote {
					e.writeIndent(1)
				} else {
					e.writeIndent(0)
				}
			}
			e.encodeTag(child, sub)
			wrote = true
		}
		if wrote && !sub {
			e.writeIndent(-1)
		}
	}

	e.writeString("</")
	e.writeString(tag.Name)
	e.writeByte('>')
}

// escapeString escapes s for output as character data. Markup delimiters
// become named references and control characters become numeric references.
// If escapeLead is set, a leading space or tab is also escaped so that it
// survives whitespace trimming when decoded.
func escapeString(s string, escapeLead bool) string {
	var buf []byte
	last := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		var esc string
		switch {
		case b == '<':
			esc = "&lt;"
		case b == '>':
			esc = "&gt;"
		case b == '&':
			esc = "&amp;"
		case b == '"':
			esc = "&quot;"
		case b == '\'':
			esc = "&apos;"
		case b < 0x20 || b == 0x7F:
			esc = "&#" + strconv.Itoa(int(b)) + ";"
		case escapeLead && i == 0 && (b == ' ' || b == '\t'):
			esc = "&#" + strconv.Itoa(int(b)) + ";"
		default:
			continue
		}
		buf = append(buf, s[last:i]...)
		buf = append(buf, esc...)
		last = i + 1
	}
	if buf == nil {
		return s
	}
	return string(append(buf, s[last:]...))
}
