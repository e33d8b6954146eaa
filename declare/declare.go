// The declare package builds resource trees in a declarative style. It is
// meant for tests and fixtures, where a tree is easier to read as a
// literal than as a sequence of constructor calls.
//
// Most items have a Declare method, which returns the corresponding
// fcbfile structure:
//
//	f := declare.Root{
//		declare.Object("WorldSector",
//			declare.Field("Id", fcbfile.KindId32, 70),
//			declare.Object("Entity",
//				declare.Field("disEntityId", fcbfile.KindId64, 7700),
//				declare.Field("hidName", fcbfile.KindString, "Guard"),
//				declare.Field("hidPos", fcbfile.KindVector3, 1, 2, 3),
//			),
//		),
//	}.Declare()
package declare

import (
	"github.com/duniatools/fcbfile"
)

// Root declares a fcbfile.ResourceFile. It is a list of Object
// declarations, one per root node.
type Root []object

// Declare evaluates the Root declaration, generating the file's node
// trees in order.
func (droot Root) Declare() *fcbfile.ResourceFile {
	f := &fcbfile.ResourceFile{Roots: make([]*fcbfile.Node, 0, len(droot))}
	for _, dobj := range droot {
		f.Roots = append(f.Roots, dobj.Declare())
	}
	return f
}

// element is implemented by declarations that can be within an Object
// declaration.
type element interface {
	element()
}

// object represents the declaration of a fcbfile.Node.
type object struct {
	name     string
	tag      uint32
	byTag    bool
	raw      []byte
	isRaw    bool
	fields   []field
	children []object
}

func (object) element() {}

// Object declares a node by class name; the name is hashed to the node's
// type tag. Elements may be Field/FieldHash declarations, which become
// attributes, nested Object/ObjectTag declarations, which become
// children, and a Raw declaration, which makes the node opaque.
func Object(class string, elements ...element) object {
	obj := object{name: class}
	obj.add(elements)
	return obj
}

// ObjectTag declares a node by raw type tag, for trees whose class names
// are not known.
func ObjectTag(tag uint32, elements ...element) object {
	obj := object{tag: tag, byTag: true}
	obj.add(elements)
	return obj
}

func (obj *object) add(elements []element) {
	for _, e := range elements {
		switch e := e.(type) {
		case field:
			obj.fields = append(obj.fields, e)
		case object:
			obj.children = append(obj.children, e)
		case raw:
			obj.raw = []byte(e)
			obj.isRaw = true
		}
	}
}

// Declare evaluates the Object declaration, generating the node, its
// attributes, and its descendants.
func (dobj object) Declare() *fcbfile.Node {
	return dobj.declare(nil)
}

func (dobj object) declare(parent *fcbfile.Node) *fcbfile.Node {
	tag := dobj.tag
	if !dobj.byTag {
		tag = fcbfile.HashName(dobj.name)
	}
	node := fcbfile.NewNode(tag, parent)
	if dobj.isRaw {
		node.Raw = dobj.raw
		return node
	}
	for _, f := range dobj.fields {
		hash := f.hash
		if !f.byHash {
			hash = fcbfile.HashName(f.name)
		}
		node.SetAttr(hash, value(f.kind, f.value))
	}
	for _, dchild := range dobj.children {
		dchild.declare(node)
	}
	return node
}

// field represents the declaration of a fcbfile.Attr.
type field struct {
	name   string
	hash   uint32
	byHash bool
	kind   fcbfile.Kind
	value  []interface{}
}

func (field) element() {}

// Field declares an attribute of an Object. It defines the field name,
// which is hashed to the attribute hash, the value kind, and the value.
//
// The value arguments are coerced to the kind. A single argument that is
// already a fcbfile.Value of the kind is used as is. Otherwise:
//
//	Bool:                              a single bool
//	Int8..UInt64, Hash32/64, Id32/64:  a single number
//	Float32, Float64:                  a single number
//	String:                            a single string or []byte
//	BinHex:                            a single []byte or string (raw bytes)
//	Vector2:                           2 numbers (X, Y)
//	Vector3:                           3 numbers (X, Y, Z)
//	Vector4, Quaternion:               4 numbers (X, Y, Z, W)
//
// Any number type except complex may be given where a number is expected.
// Missing or mismatched arguments yield the kind's zero value.
func Field(name string, kind fcbfile.Kind, value ...interface{}) field {
	return field{name: name, kind: kind, value: value}
}

// FieldHash declares an attribute by raw hash, for fields whose names are
// not known.
func FieldHash(hash uint32, kind fcbfile.Kind, value ...interface{}) field {
	return field{hash: hash, byHash: true, kind: kind, value: value}
}

// Declare evaluates the Field declaration. Since the field does not
// belong to any object, the name is ignored and only the value is
// generated.
func (prop field) Declare() fcbfile.Value {
	return value(prop.kind, prop.value)
}

// raw represents the declaration of an opaque payload.
type raw []byte

func (raw) element() {}

// Raw declares the payload of an opaque node. An Object with a Raw
// element ignores its Field and Object elements.
func Raw(data []byte) raw {
	return raw(data)
}
