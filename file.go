// The fcbfile package handles the decoding, encoding, and manipulation of
// the binary resource containers used by console-era level data.
//
// A container holds a tree of Nodes. Each Node is identified by a 32-bit
// class-name hash and carries an ordered list of attributes, keyed by
// 32-bit field-name hashes, along with an ordered list of child Nodes.
// Attribute values are typed; every available kind implements the Value
// interface, and its concrete type is prefixed with "Value".
//
// A single container file is represented by a ResourceFile. The related
// files that make up one playable level are grouped by a Level, which also
// indexes node identities and resolves the references between them.
//
// ResourceFile structures are decoded from and encoded to the native
// binary format by the "fcb" sub-package, and to the editable markup form
// by the "fcbx" sub-package. Trees can also be constructed directly; the
// "declare" sub-package provides a compact way to do so.
package fcbfile

import (
	"fmt"

	"github.com/duniatools/fcbfile/errors"
)

////////////////////////////////////////////////////////////////

// ResourceFile represents a single resource container. A container is not
// itself a node, but holds one or more root nodes.
type ResourceFile struct {
	// Name identifies the file within a level, such as "managers" or a
	// sector file name. Codecs ignore it.
	Name string

	// Roots contains the root nodes of the container.
	Roots []*Node

	// Compressed indicates that the container body was stored
	// LZ4-compressed, and will be compressed again when encoded.
	Compressed bool
}

// Walk calls visit for every node in the file in depth-first order. If
// visit returns false, the children of that node are skipped.
func (f *ResourceFile) Walk(visit func(*Node) bool) {
	for _, root := range f.Roots {
		root.Walk(visit)
	}
}

////////////////////////////////////////////////////////////////

// Attr is a single attribute of a Node: a field-name hash paired with a
// typed value. Attribute order is significant and is preserved by codecs.
type Attr struct {
	Hash  uint32
	Value Value
}

// Node represents a single object in a container tree.
type Node struct {
	// Tag is the hash of the node's class name.
	Tag uint32

	// Attrs is the ordered list of the node's attributes.
	Attrs []Attr

	// Raw holds the unparsed payload of a node whose tag is not known to
	// the class registry. When Raw is non-nil the node is opaque: codecs
	// emit Raw verbatim and ignore Attrs and children.
	Raw []byte

	// Contains nodes that are the children of the current node.
	children []*Node

	// The parent of the node. Can be nil.
	parent *Node
}

// Well-known field hashes used by node and level helpers.
var (
	hashHidName       = HashName("hidName")
	hashHidPos        = HashName("hidPos")
	hashHidPosPrecise = HashName("hidPos_precise")
)

// NewNode creates a new Node with a given class tag, and an optional
// parent.
func NewNode(tag uint32, parent *Node) *Node {
	node := &Node{Tag: tag}
	if parent != nil {
		node.SetParent(parent)
	}
	return node
}

func (node *Node) addChild(child *Node) {
	node.children = append(node.children, child)
}

func (node *Node) removeChild(child *Node) {
	for i, ch := range node.children {
		if ch == child {
			node.children[i] = nil
			node.children = append(node.children[:i], node.children[i+1:]...)
		}
	}
}

// Parent returns the parent of the node. Can return nil if the node has no
// parent.
func (node *Node) Parent() *Node {
	return node.parent
}

// SetParent sets the parent of the node, appending it to the parent's
// children. The parent can be set to nil. Errors if the parent is a
// descendant of the node.
func (node *Node) SetParent(parent *Node) error {
	if node.parent == parent {
		return nil
	}
	if parent == node {
		return fmt.Errorf("attempt to set %s as its own parent", node)
	}
	if parent != nil && parent.IsDescendantOf(node) {
		return errors.New("attempt to set parent would result in circular reference")
	}
	if node.parent != nil {
		node.parent.removeChild(node)
	}
	node.parent = parent
	if parent != nil {
		parent.addChild(node)
	}
	return nil
}

// AddChild appends a node to the end of the node's children, detaching it
// from its current parent first.
func (node *Node) AddChild(child *Node) error {
	if child == nil {
		return errors.New("cannot add nil child")
	}
	return child.SetParent(node)
}

// RemoveChild detaches a child from the node. The child keeps its own
// descendants. Errors if the given node is not a child of this node.
func (node *Node) RemoveChild(child *Node) error {
	if child == nil || child.parent != node {
		return errors.New("node to remove is not a child of this node")
	}
	return child.SetParent(nil)
}

// ReorderChild moves the child at index from to index to, shifting the
// children in between.
func (node *Node) ReorderChild(from, to int) error {
	if from < 0 || from >= len(node.children) {
		return fmt.Errorf("from index %d out of range", from)
	}
	if to < 0 || to >= len(node.children) {
		return fmt.Errorf("to index %d out of range", to)
	}
	if from == to {
		return nil
	}
	child := node.children[from]
	rest := append(node.children[:from], node.children[from+1:]...)
	rest = append(rest, nil)
	copy(rest[to+1:], rest[to:])
	rest[to] = child
	node.children = rest
	return nil
}

// ClearChildren detaches all of the node's children, in reverse order.
func (node *Node) ClearChildren() {
	for len(node.children) > 0 {
		node.children[len(node.children)-1].SetParent(nil)
	}
}

// Children returns a list of the node's children.
func (node *Node) Children() []*Node {
	list := make([]*Node, len(node.children))
	copy(list, node.children)
	return list
}

// NumChildren returns the number of children of the node.
func (node *Node) NumChildren() int {
	return len(node.children)
}

// Clone returns a deep copy of the node. Every attribute value, the opaque
// payload, and all descendants are copied as well. The clone has no
// parent.
func (node *Node) Clone() *Node {
	clone := &Node{Tag: node.Tag}
	if node.Attrs != nil {
		clone.Attrs = make([]Attr, len(node.Attrs))
		for i, attr := range node.Attrs {
			clone.Attrs[i] = Attr{Hash: attr.Hash, Value: attr.Value.Copy()}
		}
	}
	if node.Raw != nil {
		clone.Raw = make([]byte, len(node.Raw))
		copy(clone.Raw, node.Raw)
	}
	for _, child := range node.children {
		child.Clone().SetParent(clone)
	}
	return clone
}

// Walk calls visit for the node and every descendant in depth-first order.
// If visit returns false, the children of that node are skipped.
func (node *Node) Walk(visit func(*Node) bool) {
	if !visit(node) {
		return
	}
	for _, child := range node.children {
		child.Walk(visit)
	}
}

// FindFirstChild returns the first found child with the given class tag.
// Returns nil if no child was found. If recursive is true, descendants are
// searched as well.
func (node *Node) FindFirstChild(tag uint32, recursive bool) *Node {
	for _, child := range node.children {
		if child.Tag == tag {
			return child
		}
	}
	if recursive {
		for _, child := range node.children {
			if desc := child.FindFirstChild(tag, true); desc != nil {
				return desc
			}
		}
	}
	return nil
}

// FindFirstNamed returns the first found child whose name attribute
// matches the given name. Returns nil if no child was found. If recursive
// is true, descendants are searched as well.
func (node *Node) FindFirstNamed(name string, recursive bool) *Node {
	for _, child := range node.children {
		if child.Name() == name {
			return child
		}
	}
	if recursive {
		for _, child := range node.children {
			if desc := child.FindFirstNamed(name, true); desc != nil {
				return desc
			}
		}
	}
	return nil
}

// IsAncestorOf returns whether the node is an ancestor of another node.
func (node *Node) IsAncestorOf(descendant *Node) bool {
	if descendant != nil {
		return descendant.IsDescendantOf(node)
	}
	return false
}

// IsDescendantOf returns whether the node is a descendant of another node.
func (node *Node) IsDescendantOf(ancestor *Node) bool {
	parent := node.parent
	for parent != nil {
		if parent == ancestor {
			return true
		}
		parent = parent.parent
	}
	return false
}

// Attr returns the value of the attribute with the given field hash. The
// value is nil if the attribute is not present.
func (node *Node) Attr(hash uint32) Value {
	for _, attr := range node.Attrs {
		if attr.Hash == hash {
			return attr.Value
		}
	}
	return nil
}

// SetAttr sets the value of the attribute with the given field hash. An
// existing attribute is replaced in place, keeping its position; a new
// attribute is appended. If value is nil, the attribute is removed.
func (node *Node) SetAttr(hash uint32, value Value) {
	if value == nil {
		node.RemoveAttr(hash)
		return
	}
	for i, attr := range node.Attrs {
		if attr.Hash == hash {
			node.Attrs[i].Value = value
			return
		}
	}
	node.Attrs = append(node.Attrs, Attr{Hash: hash, Value: value})
}

// RemoveAttr removes the attribute with the given field hash, reporting
// whether it was present.
func (node *Node) RemoveAttr(hash uint32) bool {
	for i, attr := range node.Attrs {
		if attr.Hash == hash {
			node.Attrs = append(node.Attrs[:i], node.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// AttrNamed returns the value of the attribute whose field name hashes to
// the given name.
func (node *Node) AttrNamed(name string) Value {
	return node.Attr(HashName(name))
}

// SetAttrNamed sets the value of the attribute whose field name hashes to
// the given name.
func (node *Node) SetAttrNamed(name string, value Value) {
	node.SetAttr(HashName(name), value)
}

// Name returns the node's name attribute (hidName), or an empty string if
// it is not present or not a string.
func (node *Node) Name() string {
	name, _ := node.Attr(hashHidName).(ValueString)
	return string(name)
}

// SetName sets the node's name attribute (hidName).
func (node *Node) SetName(name string) {
	node.SetAttr(hashHidName, ValueString(name))
}

// String implements the fmt.Stringer interface by returning the name of
// the node, or the hexadecimal form of its class tag if the name is not
// set.
func (node *Node) String() string {
	if name := node.Name(); name != "" {
		return name
	}
	return FormatHash(node.Tag)
}
