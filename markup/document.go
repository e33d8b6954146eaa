// Package markup implements the textual document form produced and consumed
// by the fcbx codec.
//
// The dialect is a small subset of XML: tags with quoted attribute values,
// text content, comments, and an optional declaration before the root tag.
// Documents are UTF-8 throughout; non-ASCII text is written literally rather
// than as character references.
package markup

import (
	"strconv"
)

// Attr represents an attribute of a tag.
type Attr struct {
	Name  string
	Value string
}

// Tag represents one element of a document. The content of a tag is a
// sequence of optional whitespace, optional text, and zero or more complete
// child tags with optional whitespace between each.
type Tag struct {
	// Name is the element name, shared by the start and end tag.
	Name string

	// Attr is the ordered list of the tag's attributes.
	Attr []Attr

	// Empty indicates the self-closing form. When encoding, the tag is
	// written self-closing and any content is ignored. When decoding, it is
	// set if the decoded tag was self-closing.
	Empty bool

	// Text is the textual content of the tag, which appears before any
	// child tags.
	Text string

	// NoIndent suppresses prettifying whitespace for the tag and its
	// descendants when encoding. When decoding, it is set if no whitespace
	// separated the tag's content while indentation was detected for the
	// document.
	NoIndent bool

	// Tags is the list of child tags.
	Tags []*Tag
}

// AttrValue returns the value of the first attribute of the given name, and
// whether or not it exists.
func (t *Tag) AttrValue(name string) (value string, exists bool) {
	for _, a := range t.Attr {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttrValue sets the value of the first attribute of the given name. If
// value is an empty string, the attribute is removed instead. If the
// attribute does not exist and value is not empty, it is added.
func (t *Tag) SetAttrValue(name, value string) {
	for i, a := range t.Attr {
		if a.Name == name {
			if value == "" {
				t.Attr = append(t.Attr[:i], t.Attr[i+1:]...)
			} else {
				t.Attr[i].Value = value
			}
			return
		}
	}
	if value == "" {
		return
	}
	t.Attr = append(t.Attr, Attr{Name: name, Value: value})
}

// Document represents an entire markup document.
type Document struct {
	// Decl is the content of the document's declaration, the text between
	// "<?" and "?>" before the root tag. Empty means no declaration.
	Decl string

	// Prefix is a string that appears at the start of each line in the
	// document.
	//
	// When encoding, the prefix is written after each newline. Newlines are
	// written automatically when either Prefix or Indent is not empty.
	//
	// When decoding, this value is set when indentation is detected. It
	// becomes any leading whitespace at the start of the file.
	Prefix string

	// Indent is a string indicating one level of indentation.
	//
	// When encoding, a run of indents is written after the Prefix, one for
	// each nesting level.
	//
	// When decoding, this value is set when indentation is detected: it is
	// the whitespace that follows the first newline and prefix inside the
	// root tag.
	Indent string

	// Suffix is any text that appears after the root tag. When encoding it
	// is written verbatim at the end of the document.
	Suffix string

	// Root is the root tag of the document.
	Root *Tag

	// Warnings lists non-fatal problems encountered by ReadFrom or WriteTo,
	// which reset it on each call.
	Warnings []error
}

// A SyntaxError represents a syntax error in the markup input stream.
type SyntaxError struct {
	Msg  string
	Line int
}

func (e *SyntaxError) Error() string {
	return "markup syntax error on line " + strconv.Itoa(e.Line) + ": " + e.Msg
}

const (
	nameTag = iota
	nameAttr
	nameEntity
)

// isNameByte reports whether c may appear in a name of the given type. Names
// are runs of printable ASCII excluding the delimiters of their context.
func isNameByte(c byte, typ int) bool {
	if c < '!' || c > '~' || c == '>' || c == '/' {
		return false
	}
	switch typ {
	case nameAttr:
		return c != '='
	case nameEntity:
		return c != ';'
	}
	return true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\r', '\n', '\t', '\f':
		return true
	}
	return false
}
