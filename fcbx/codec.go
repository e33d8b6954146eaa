// Package fcbx implements a codec between resource container trees and an
// editable markup form.
//
// A container maps to a document with an <fcb> root; nodes map to <object>
// tags and attributes to <field> tags. Every field carries the raw value
// bytes as hexadecimal text, and all kinds except BinHex add a typed
// value-<Kind> attribute. Decoding prefers the typed attribute and falls
// back to the hex text, so an edit to either side of a field takes effect.
package fcbx

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
	"github.com/duniatools/fcbfile/markup"
)

// Element and attribute names of the markup dialect.
const (
	tagRoot   = "fcb"
	tagObject = "object"
	tagField  = "field"

	attrName       = "name"
	attrHash       = "hash"
	attrVersion    = "version"
	attrCompressed = "compressed"
	attrType       = "type"

	valuePrefix = "value-"
)

// containerVersion is the container format version the dialect mirrors.
const containerVersion = "2"

////////////////////////////////////////////////////////////////

// Encoder converts resource container trees to markup documents.
type Encoder struct {
	// Classes resolves class and field hashes to names. If nil, the builtin
	// registry is used.
	Classes *classes.Registry
}

// Encode converts a file to a markup document.
func (e Encoder) Encode(f *fcbfile.ResourceFile) (*markup.Document, error) {
	if f == nil {
		return nil, errors.New("file is nil")
	}
	if e.Classes == nil {
		e.Classes = classes.Builtin()
	}

	root := &markup.Tag{
		Name: tagRoot,
		Attr: []markup.Attr{
			{Name: attrVersion, Value: containerVersion},
			{Name: attrCompressed, Value: strconv.FormatBool(f.Compressed)},
		},
	}
	for _, node := range f.Roots {
		tag, err := e.encodeNode(node)
		if err != nil {
			return nil, err
		}
		root.Tags = append(root.Tags, tag)
	}
	root.Empty = len(root.Tags) == 0

	return &markup.Document{
		Decl:   `xml version="1.0" encoding="utf-8"`,
		Indent: "\t",
		Suffix: "\n",
		Root:   root,
	}, nil
}

// EncodeNode converts a single node to an object tag, for exporting one
// entity subtree on its own.
func (e Encoder) EncodeNode(node *fcbfile.Node) (*markup.Tag, error) {
	if e.Classes == nil {
		e.Classes = classes.Builtin()
	}
	return e.encodeNode(node)
}

func (e Encoder) encodeNode(node *fcbfile.Node) (*markup.Tag, error) {
	if node == nil {
		return nil, errors.New("node is nil")
	}

	tag := &markup.Tag{Name: tagObject}
	if name, ok := e.Classes.Name(node.Tag); ok {
		tag.Attr = append(tag.Attr, markup.Attr{Name: attrName, Value: name})
	} else {
		tag.Attr = append(tag.Attr, markup.Attr{Name: attrHash, Value: fcbfile.FormatHash(node.Tag)})
	}

	if node.Raw != nil {
		tag.Attr = append(tag.Attr, markup.Attr{Name: attrType, Value: fcbfile.KindBinHex.String()})
		tag.Text = strings.ToUpper(hex.EncodeToString(node.Raw))
		tag.Empty = tag.Text == ""
		return tag, nil
	}

	for _, attr := range node.Attrs {
		field, err := e.encodeField(attr)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", e.ident(node.Tag), err)
		}
		tag.Tags = append(tag.Tags, field)
	}
	for _, child := range node.Children() {
		sub, err := e.encodeNode(child)
		if err != nil {
			return nil, err
		}
		tag.Tags = append(tag.Tags, sub)
	}
	tag.Empty = len(tag.Tags) == 0
	return tag, nil
}

func (e Encoder) encodeField(attr fcbfile.Attr) (*markup.Tag, error) {
	if attr.Value == nil {
		return nil, fmt.Errorf("field %s has no value", e.ident(attr.Hash))
	}

	tag := &markup.Tag{Name: tagField}
	if name, ok := e.Classes.Name(attr.Hash); ok {
		tag.Attr = append(tag.Attr, markup.Attr{Name: attrName, Value: name})
	} else {
		tag.Attr = append(tag.Attr, markup.Attr{Name: attrHash, Value: fcbfile.FormatHash(attr.Hash)})
	}

	b := attr.Value.Bytes()
	if k := attr.Value.Kind(); k != fcbfile.KindBinHex {
		tag.Attr = append(tag.Attr, markup.Attr{Name: valuePrefix + k.String(), Value: attr.Value.String()})
	} else if len(b) == 0 {
		// An empty field tag reads back as having no value, so an empty
		// buffer keeps its kind in a typed attribute instead.
		tag.Attr = append(tag.Attr, markup.Attr{Name: valuePrefix + k.String(), Value: ""})
	}
	tag.Text = strings.ToUpper(hex.EncodeToString(b))
	// The typed attribute added above keeps an empty mirror decodable.
	tag.Empty = tag.Text == ""
	return tag, nil
}

// ident renders a hash for error messages, preferring its known name.
func (e Encoder) ident(hash uint32) string {
	if name, ok := e.Classes.Name(hash); ok {
		return name
	}
	return fcbfile.FormatHash(hash)
}

////////////////////////////////////////////////////////////////

// Decoder converts markup documents back to resource container trees.
type Decoder struct {
	// Classes resolves field kinds for fields whose typed attribute is
	// absent. If nil, the builtin registry is used.
	Classes *classes.Registry
}

// Decode converts a document to a file. Problems that lose no data, such
// as skipped unknown tags or a mirror that no longer fits its registry
// kind, are accumulated in warn.
func (d Decoder) Decode(doc *markup.Document) (f *fcbfile.ResourceFile, warn, err error) {
	if doc == nil {
		return nil, nil, errors.New("document is nil")
	}
	if doc.Root == nil {
		return nil, nil, errors.New("document has no root tag")
	}
	if d.Classes == nil {
		d.Classes = classes.Builtin()
	}

	root := doc.Root
	if root.Name != tagRoot {
		return nil, nil, fmt.Errorf("root tag is <%s>, expected <%s>", root.Name, tagRoot)
	}

	var warns errors.Errors
	if v, ok := root.AttrValue(attrVersion); ok && v != containerVersion {
		warns = append(warns, fmt.Errorf("document version %q, expected %q", v, containerVersion))
	}

	f = &fcbfile.ResourceFile{}
	if v, ok := root.AttrValue(attrCompressed); ok {
		c, perr := strconv.ParseBool(v)
		if perr != nil {
			warns = append(warns, fmt.Errorf("bad compressed attribute %q", v))
		} else {
			f.Compressed = c
		}
	}

	for _, tag := range root.Tags {
		if tag.Name != tagObject {
			warns = append(warns, fmt.Errorf("unexpected <%s> tag in <%s>", tag.Name, tagRoot))
			continue
		}
		node, err := d.decodeNode(tag, nil, &warns)
		if err != nil {
			return nil, warns.Return(), err
		}
		f.Roots = append(f.Roots, node)
	}
	return f, warns.Return(), nil
}

// DecodeNode converts a single object tag to a node, for importing one
// entity subtree on its own.
func (d Decoder) DecodeNode(tag *markup.Tag) (node *fcbfile.Node, warn, err error) {
	if tag == nil {
		return nil, nil, errors.New("tag is nil")
	}
	if d.Classes == nil {
		d.Classes = classes.Builtin()
	}
	if tag.Name != tagObject {
		return nil, nil, fmt.Errorf("tag is <%s>, expected <%s>", tag.Name, tagObject)
	}
	var warns errors.Errors
	node, err = d.decodeNode(tag, nil, &warns)
	return node, warns.Return(), err
}

func (d Decoder) decodeNode(tag *markup.Tag, parent *fcbfile.Node, warns *errors.Errors) (*fcbfile.Node, error) {
	hash, ident, err := d.identity(tag)
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}

	node := fcbfile.NewNode(hash, parent)
	if t, ok := tag.AttrValue(attrType); ok {
		if t != fcbfile.KindBinHex.String() {
			return nil, fmt.Errorf("object %s: unknown type attribute %q", ident, t)
		}
		raw, err := hexText(tag.Text)
		if err != nil {
			return nil, fmt.Errorf("object %s: bad payload hex: %v", ident, err)
		}
		node.Raw = raw
		return node, nil
	}

	for _, sub := range tag.Tags {
		switch sub.Name {
		case tagField:
			if err := d.decodeField(node, sub, warns); err != nil {
				return nil, fmt.Errorf("object %s: %w", ident, err)
			}
		case tagObject:
			if _, err := d.decodeNode(sub, node, warns); err != nil {
				return nil, fmt.Errorf("object %s: %w", ident, err)
			}
		default:
			*warns = append(*warns, fmt.Errorf("object %s: unexpected <%s> tag", ident, sub.Name))
		}
	}
	return node, nil
}

func (d Decoder) decodeField(node *fcbfile.Node, tag *markup.Tag, warns *errors.Errors) error {
	hash, ident, err := d.identity(tag)
	if err != nil {
		return fmt.Errorf("field: %w", err)
	}

	value, err := d.fieldValue(node.Tag, hash, ident, tag, warns)
	if err != nil {
		return fmt.Errorf("field %s: %w", ident, err)
	}
	node.Attrs = append(node.Attrs, fcbfile.Attr{Hash: hash, Value: value})
	return nil
}

// fieldValue resolves the value of a field tag: the typed value-<Kind>
// attribute if one parses, otherwise the hexadecimal mirror text, shaped by
// the registry's kind for the field when it has one.
func (d Decoder) fieldValue(class, field uint32, ident string, tag *markup.Tag, warns *errors.Errors) (fcbfile.Value, error) {
	for _, a := range tag.Attr {
		if !strings.HasPrefix(a.Name, valuePrefix) {
			continue
		}
		k := fcbfile.KindFromString(a.Name[len(valuePrefix):])
		if !k.Valid() {
			continue
		}
		return fcbfile.ParseValue(k, a.Value)
	}

	if tag.Empty {
		return nil, errors.New("no value")
	}
	b, err := hexText(tag.Text)
	if err != nil {
		return nil, fmt.Errorf("bad value hex: %v", err)
	}
	if k := d.Classes.FieldKind(class, field); k.Valid() && k != fcbfile.KindBinHex {
		v, err := fcbfile.ValueFromBytes(k, b)
		if err == nil {
			return v, nil
		}
		*warns = append(*warns, fmt.Errorf("field %s: %v; kept as raw bytes", ident, err))
	}
	return fcbfile.ValueBinHex(b), nil
}

// hexText decodes hexadecimal text, ignoring interleaved whitespace so that
// long payloads may be wrapped across lines.
func hexText(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}

// identity reads the name or hash attribute of an object or field tag,
// returning the hash and a display form for error messages.
func (d Decoder) identity(tag *markup.Tag) (uint32, string, error) {
	if name, ok := tag.AttrValue(attrName); ok {
		return fcbfile.HashName(name), name, nil
	}
	if s, ok := tag.AttrValue(attrHash); ok {
		h, err := fcbfile.ParseHash(s)
		if err != nil {
			return 0, s, fmt.Errorf("bad hash attribute %q", s)
		}
		return h, fcbfile.FormatHash(h), nil
	}
	return 0, "", errors.New("missing name and hash attributes")
}
