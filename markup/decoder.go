package markup

// The decoder is adapted from the standard XML package, reduced to the
// subset of XML this dialect uses.

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"unicode/utf8"
)

// ReadFrom decodes data from r into the Document, replacing its previous
// content. Any text after the root tag is kept in Suffix. Comments are
// discarded.
func (doc *Document) ReadFrom(r io.Reader) (n int64, err error) {
	if r == nil {
		return 0, errors.New("reader is nil")
	}

	doc.Decl = ""
	doc.Prefix = ""
	doc.Indent = ""
	doc.Suffix = ""
	doc.Warnings = doc.Warnings[:0]

	d := &decoder{
		doc:      doc,
		nextByte: make([]byte, 0, 9),
		line:     1,
	}
	if rb, ok := r.(io.ByteReader); ok {
		d.r = rb
	} else {
		d.r = bufio.NewReader(r)
	}

	d.skipBOM()
	doc.Root, err = d.decodeTag(true)
	if err != nil {
		return d.n, err
	}

	d.buf.Reset()
	for {
		b, ok := d.getc()
		if !ok {
			break
		}
		d.buf.WriteByte(b)
	}
	doc.Suffix = d.buf.String()

	return d.n, nil
}

type decoder struct {
	r        io.ByteReader
	buf      bytes.Buffer
	nextByte []byte
	doc      *Document
	n        int64
	err      error
	line     int
}

// Creates a SyntaxError with the current line number.
func (d *decoder) syntaxError(msg string) error {
	return &SyntaxError{Msg: msg, Line: d.line}
}

// Read a single byte, maintaining the line count. If there is no byte to
// read, return ok==false and leave the error in d.err.
func (d *decoder) getc() (b byte, ok bool) {
	if d.err != nil {
		return 0, false
	}
	if len(d.nextByte) > 0 {
		b, d.nextByte = d.nextByte[len(d.nextByte)-1], d.nextByte[:len(d.nextByte)-1]
	} else {
		b, d.err = d.r.ReadByte()
		if d.err != nil {
			return 0, false
		}
		d.n++
	}
	if b == '\n' {
		d.line++
	}
	return b, true
}

// Must read a single byte. An EOF becomes a syntax error.
func (d *decoder) mustgetc() (b byte, ok bool) {
	if b, ok = d.getc(); !ok {
		if d.err == io.EOF {
			d.err = d.syntaxError("unexpected EOF")
		}
	}
	return
}

// Unread a single byte.
func (d *decoder) ungetc(b byte) {
	if b == '\n' {
		d.line--
	}
	d.nextByte = append(d.nextByte, b)
}

// skipBOM consumes a UTF-8 byte order mark if one starts the input.
func (d *decoder) skipBOM() {
	const bom = "\xEF\xBB\xBF"
	for i := 0; i < len(bom); i++ {
		b, ok := d.getc()
		if !ok {
			return
		}
		if b != bom[i] {
			d.ungetc(b)
			for j := i - 1; j >= 0; j-- {
				d.ungetc(bom[j])
			}
			return
		}
	}
}

// readSpace consumes whitespace and returns it. The result aliases the
// decoder's scratch buffer.
func (d *decoder) readSpace() []byte {
	d.buf.Reset()
	for {
		b, ok := d.getc()
		if !ok {
			return d.buf.Bytes()
		}
		if !isSpace(b) {
			d.ungetc(b)
			return d.buf.Bytes()
		}
		d.buf.WriteByte(b)
	}
}

// Skip spaces if any.
func (d *decoder) space() {
	for {
		b, ok := d.getc()
		if !ok {
			return
		}
		if !isSpace(b) {
			d.ungetc(b)
			return
		}
	}
}

// decodeDecl reads the remainder of a declaration, with "<?" already
// consumed, and stores its content on the document.
func (d *decoder) decodeDecl() bool {
	d.buf.Reset()
	var prev byte
	for {
		b, ok := d.mustgetc()
		if !ok {
			return false
		}
		if prev == '?' && b == '>' {
			s := d.buf.Bytes()
			d.doc.Decl = string(s[:len(s)-1])
			return true
		}
		d.buf.WriteByte(b)
		prev = b
	}
}

// skipComment reads the remainder of a comment, with "<!" already consumed.
func (d *decoder) skipComment() bool {
	for i := 0; i < 2; i++ {
		b, ok := d.mustgetc()
		if !ok {
			return false
		}
		if b != '-' {
			d.err = d.syntaxError("expected comment after <!")
			return false
		}
	}
	var b0, b1 byte
	for {
		b, ok := d.mustgetc()
		if !ok {
			return false
		}
		if b0 == '-' && b1 == '-' && b == '>' {
			return true
		}
		b0, b1 = b1, b
	}
}

func (d *decoder) decodeStartTag(tag *Tag) bool {
	b, ok := d.getc()
	if !ok {
		return false
	}
	if b != '<' {
		d.err = d.syntaxError("expected start tag")
		return false
	}
	if b, ok = d.mustgetc(); !ok {
		return false
	}
	if b == '/' {
		d.err = d.syntaxError("unexpected end tag")
		return false
	}
	d.ungetc(b)

	if tag.Name, ok = d.name(nameTag); !ok {
		if d.err == nil {
			d.err = d.syntaxError("expected element name after <")
		}
		return false
	}

	for {
		d.space()
		if b, ok = d.mustgetc(); !ok {
			return false
		}
		if b == '/' {
			tag.Empty = true
			if b, ok = d.mustgetc(); !ok {
				return false
			}
			if b != '>' {
				d.err = d.syntaxError("expected /> in element")
				return false
			}
			break
		}
		if b == '>' {
			break
		}
		d.ungetc(b)

		name, ok := d.name(nameAttr)
		if !ok {
			if d.err == nil {
				d.err = d.syntaxError("expected attribute name in element")
			}
			return false
		}
		d.space()
		if b, ok = d.mustgetc(); !ok {
			return false
		}
		if b != '=' {
			d.err = d.syntaxError("attribute name without = in element")
			return false
		}
		d.space()
		value, ok := d.attrval()
		if !ok {
			return false
		}
		tag.Attr = append(tag.Attr, Attr{Name: name, Value: value})
	}
	return true
}

func (d *decoder) attrval() (string, bool) {
	b, ok := d.mustgetc()
	if !ok {
		return "", false
	}
	if b != '"' && b != '\'' {
		d.err = d.syntaxError("unquoted or missing attribute value in element")
		return "", false
	}
	text, ok := d.text(int(b))
	if !ok {
		return "", false
	}
	return string(text), true
}

func (d *decoder) decodeEndTag(tag *Tag) bool {
	b, ok := d.getc()
	if !ok {
		return false
	}
	if b != '<' {
		d.err = d.syntaxError("expected end tag")
		return false
	}
	if b, ok = d.mustgetc(); !ok {
		return false
	}
	if b != '/' {
		d.err = d.syntaxError("expected end tag")
		return false
	}

	name, ok := d.name(nameTag)
	if !ok {
		if d.err == nil {
			d.err = d.syntaxError("expected element name after </")
		}
		return false
	}
	if name != tag.Name {
		d.err = d.syntaxError("end tag </" + name + "> does not match <" + tag.Name + ">")
		return false
	}
	d.space()
	if b, ok = d.mustgetc(); !ok {
		return false
	}
	if b != '>' {
		d.err = d.syntaxError("invalid characters between </" + name + " and >")
		return false
	}
	return true
}

func (d *decoder) decodeTag(root bool) (*Tag, error) {
	if d.err != nil {
		return nil, d.err
	}

	tag := new(Tag)
	noindent := false

	if root {
		// Leading whitespace is the prefix candidate. It is discarded again
		// unless indentation is detected below.
		if p := d.readSpace(); len(p) > 0 {
			d.doc.Prefix = string(p)
		}
		// Declarations and comments may precede the root tag.
		for {
			b, ok := d.mustgetc()
			if !ok {
				return nil, d.err
			}
			if b != '<' {
				d.err = d.syntaxError("expected tag")
				return nil, d.err
			}
			c, ok := d.mustgetc()
			if !ok {
				return nil, d.err
			}
			if c == '?' {
				if !d.decodeDecl() {
					return nil, d.err
				}
				d.space()
				continue
			}
			if c == '!' {
				if !d.skipComment() {
					return nil, d.err
				}
				d.space()
				continue
			}
			d.ungetc(c)
			d.ungetc('<')
			break
		}
	}

	if !d.decodeStartTag(tag) {
		return nil, d.err
	}

	if tag.Empty {
		return tag, nil
	}

	// Prettifying whitespace.
	if root {
		// Detect indentation from the whitespace inside the root tag: one
		// newline, the prefix, then one level of indent.
		ind := d.readSpace()
		if i := bytes.IndexByte(ind, '\n'); i > -1 {
			if !bytes.HasPrefix(ind[i+1:], []byte(d.doc.Prefix)) {
				d.doc.Prefix = ""
			} else {
				d.doc.Indent = string(ind[i+1+len(d.doc.Prefix):])
			}
		}
	} else {
		if d.doc.Prefix != "" || d.doc.Indent != "" {
			if len(d.readSpace()) == 0 {
				noindent = true
			}
		} else {
			d.space()
		}
	}

	text, ok := d.text(-1)
	if !ok {
		return nil, d.err
	}
	tag.Text = string(text)

	for {
		// Prettifying whitespace between tags.
		d.space()

		b, ok := d.mustgetc()
		if !ok {
			return nil, d.err
		}
		if b != '<' {
			d.err = d.syntaxError("expected tag")
			return nil, d.err
		}
		if b, ok = d.mustgetc(); !ok {
			return nil, d.err
		}
		if b == '/' {
			d.ungetc('/')
			d.ungetc('<')
			if !d.decodeEndTag(tag) {
				return nil, d.err
			}
			break
		}
		if b == '!' {
			if !d.skipComment() {
				return nil, d.err
			}
			continue
		}

		d.ungetc(b)
		d.ungetc('<')

		sub, err := d.decodeTag(false)
		if err != nil {
			return nil, err
		}
		tag.Tags = append(tag.Tags, sub)
	}

	if tag.Text != "" || len(tag.Tags) > 0 {
		// Do not set NoIndent on tags with no content.
		tag.NoIndent = noindent
	}
	return tag, nil
}

// Named character references recognized by the decoder.
var entities = map[string]rune{
	"lt":   '<',
	"gt":   '>',
	"amp":  '&',
	"apos": '\'',
	"quot": '"',
}

// text reads a run of character data into a fresh byte slice. If quote >= 0
// the run is a quoted attribute value ending at the matching quote;
// otherwise it ends before the next '<'. Unescaped \r and \r\n become \n.
func (d *decoder) text(quote int) ([]byte, bool) {
	d.buf.Reset()
	var b1 byte
	for {
		b, ok := d.getc()
		if !ok {
			if quote >= 0 {
				if d.err == io.EOF {
					d.err = d.syntaxError("unexpected EOF in attribute value")
				}
				return nil, false
			}
			break
		}
		if b == '<' {
			if quote >= 0 {
				d.err = d.syntaxError("unescaped < in attribute value")
				return nil, false
			}
			d.ungetc('<')
			break
		}
		if quote >= 0 && b == byte(quote) {
			break
		}
		if b == '&' {
			if !d.entity() {
				return nil, false
			}
			b1 = 0
			continue
		}

		if b == '\r' {
			d.buf.WriteByte('\n')
		} else if b1 == '\r' && b == '\n' {
			// \r\n already wrote \n.
		} else {
			d.buf.WriteByte(b)
		}
		b1 = b
	}

	data := make([]byte, d.buf.Len())
	copy(data, d.buf.Bytes())
	return data, true
}

// entity reads a character reference, with '&' already consumed, and writes
// the referenced character to the scratch buffer.
func (d *decoder) entity() bool {
	b, ok := d.mustgetc()
	if !ok {
		return false
	}

	if b == '#' {
		base := 10
		if b, ok = d.mustgetc(); !ok {
			return false
		}
		if b == 'x' || b == 'X' {
			base = 16
			if b, ok = d.mustgetc(); !ok {
				return false
			}
		}
		var num []byte
		for isDigit(b, base) {
			num = append(num, b)
			if b, ok = d.mustgetc(); !ok {
				return false
			}
		}
		if b != ';' || len(num) == 0 {
			d.err = d.syntaxError("malformed numeric character reference")
			return false
		}
		n, err := strconv.ParseUint(string(num), base, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			d.err = d.syntaxError("character reference out of range")
			return false
		}
		var enc [utf8.UTFMax]byte
		d.buf.Write(enc[:utf8.EncodeRune(enc[:], rune(n))])
		return true
	}

	var name []byte
	for isNameByte(b, nameEntity) {
		name = append(name, b)
		if b, ok = d.mustgetc(); !ok {
			return false
		}
	}
	if b != ';' || len(name) == 0 {
		d.err = d.syntaxError("entity without semicolon")
		return false
	}
	r, known := entities[string(name)]
	if !known {
		d.err = d.syntaxError("unknown entity &" + string(name) + ";")
		return false
	}
	d.buf.WriteRune(r)
	return true
}

func isDigit(b byte, base int) bool {
	if '0' <= b && b <= '9' {
		return true
	}
	if base == 16 {
		return 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
	}
	return false
}

// Get name: let the caller provide context for missing names by not setting
// d.err, unless an unexpected EOF is received.
func (d *decoder) name(typ int) (s string, ok bool) {
	d.buf.Reset()
	if !d.readName(typ) {
		return "", false
	}
	return d.buf.String(), true
}

// Read a name and append its bytes to d.buf. The name is delimited by any
// byte not valid in names.
func (d *decoder) readName(typ int) (ok bool) {
	var b byte
	if b, ok = d.mustgetc(); !ok {
		return
	}
	if !isNameByte(b, typ) {
		d.ungetc(b)
		return false
	}
	d.buf.WriteByte(b)

	for {
		if b, ok = d.mustgetc(); !ok {
			return
		}
		if !isNameByte(b, typ) {
			d.ungetc(b)
			break
		}
		d.buf.WriteByte(b)
	}
	return true
}
