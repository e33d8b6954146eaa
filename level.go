package fcbfile

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/duniatools/fcbfile/errors"
)

// ErrIDCollision indicates that an operation would give two nodes the same
// identity. Identity allocation is collision-checked by construction, so
// this error reaching a caller means the level's files were inconsistent
// to begin with, or an explicit renumber targeted a taken identity.
var ErrIDCollision = errors.New("identity collision")

// Level groups the resource files that make up one playable level and
// maintains the identity index used to resolve references between them.
//
// Files' node trees are owned by a single editing session; structural
// edits to a tree are not synchronized here. Level-wide operations
// (indexing, scanning, renumbering, duplication) are safe for concurrent
// use: scans take a read lock, mutations a write lock, so a renumber is
// never partially observable.
type Level struct {
	mu     sync.RWMutex
	refs   RefTable
	files  []*ResourceFile
	byName map[string]*ResourceFile
	index  map[uint64]*Node
}

// NewLevel returns an empty Level resolving references with the given
// table. A nil table recognizes no identity fields; callers normally pass
// classes.Builtin() or a loaded registry.
func NewLevel(refs RefTable) *Level {
	return &Level{
		refs:   refs,
		byName: make(map[string]*ResourceFile),
		index:  make(map[uint64]*Node),
	}
}

func (lvl *Level) role(class, field uint32) RefRole {
	if lvl.refs == nil {
		return RoleNone
	}
	return lvl.refs.FieldRole(class, field)
}

// AddFile adds a resource file to the level and indexes its node
// identities. The file must have a name not already present in the level.
// Identity collisions with already-indexed nodes are returned as warnings
// wrapping ErrIDCollision; the first node keeps the identity.
func (lvl *Level) AddFile(f *ResourceFile) (warn, err error) {
	if f == nil {
		return nil, errors.New("cannot add nil file")
	}
	if f.Name == "" {
		return nil, errors.New("cannot add file without a name")
	}
	lvl.mu.Lock()
	defer lvl.mu.Unlock()
	if _, ok := lvl.byName[f.Name]; ok {
		return nil, fmt.Errorf("level already has a file named %q", f.Name)
	}
	lvl.files = append(lvl.files, f)
	lvl.byName[f.Name] = f
	return lvl.indexFile(f), nil
}

// RemoveFile removes the named file from the level and drops its nodes
// from the identity index.
func (lvl *Level) RemoveFile(name string) error {
	lvl.mu.Lock()
	defer lvl.mu.Unlock()
	f, ok := lvl.byName[name]
	if !ok {
		return fmt.Errorf("level has no file named %q", name)
	}
	delete(lvl.byName, name)
	for i, file := range lvl.files {
		if file == f {
			lvl.files = append(lvl.files[:i], lvl.files[i+1:]...)
			break
		}
	}
	lvl.reindex()
	return nil
}

// File returns the resource file with the given name, or nil.
func (lvl *Level) File(name string) *ResourceFile {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	return lvl.byName[name]
}

// Files returns the level's resource files in the order they were added.
func (lvl *Level) Files() []*ResourceFile {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	list := make([]*ResourceFile, len(lvl.files))
	copy(list, lvl.files)
	return list
}

// Node returns the node carrying the given identity, or nil.
func (lvl *Level) Node(id uint64) *Node {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	return lvl.index[id]
}

// Index returns a snapshot of the identity index.
func (lvl *Level) Index() map[uint64]*Node {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	m := make(map[uint64]*Node, len(lvl.index))
	for id, node := range lvl.index {
		m[id] = node
	}
	return m
}

// Reindex rebuilds the identity index from the current file trees. Editors
// call this after structural edits that add or remove identity-carrying
// nodes. Collisions are returned as warnings wrapping ErrIDCollision; the
// first node in file order keeps the identity.
func (lvl *Level) Reindex() (warn error) {
	lvl.mu.Lock()
	defer lvl.mu.Unlock()
	return lvl.reindex()
}

func (lvl *Level) reindex() (warn error) {
	lvl.index = make(map[uint64]*Node, len(lvl.index))
	var warns errors.Errors
	for _, f := range lvl.files {
		warns = warns.Append(lvl.indexFile(f))
	}
	return warns.Return()
}

// indexFile adds the identities of one file's nodes to the index. Must be
// called with the write lock held.
func (lvl *Level) indexFile(f *ResourceFile) (warn error) {
	var warns errors.Errors
	f.Walk(func(node *Node) bool {
		for _, attr := range node.Attrs {
			if lvl.role(node.Tag, attr.Hash) != RoleID {
				continue
			}
			id, ok := idOf(attr.Value)
			if !ok || IsNullID(id) {
				continue
			}
			if prev, taken := lvl.index[id]; taken {
				if prev != node {
					warns = append(warns, fmt.Errorf("file %q: node %s repeats identity %d: %w",
						f.Name, node, id, ErrIDCollision))
				}
				continue
			}
			lvl.index[id] = node
		}
		return true
	})
	return warns.Return()
}

// ScanReferences returns every reference field in the level, in file and
// tree order.
func (lvl *Level) ScanReferences() []FieldRef {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	return lvl.scan(nil)
}

// FindDangling returns the reference fields whose target identity is not
// present in the level. Null references (target 0) are placeholders and
// are never reported.
func (lvl *Level) FindDangling() []FieldRef {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	return lvl.scan(func(ref FieldRef) bool {
		if IsNullID(ref.Target) {
			return false
		}
		_, ok := lvl.index[ref.Target]
		return !ok
	})
}

// scan collects reference fields matching keep (nil keeps all). Must be
// called with at least the read lock held.
func (lvl *Level) scan(keep func(FieldRef) bool) []FieldRef {
	var refs []FieldRef
	for _, f := range lvl.files {
		f.Walk(func(node *Node) bool {
			for _, attr := range node.Attrs {
				if lvl.role(node.Tag, attr.Hash) != RoleRef {
					continue
				}
				target, ok := idOf(attr.Value)
				if !ok {
					continue
				}
				ref := FieldRef{File: f.Name, Node: node, Field: attr.Hash, Target: target}
				if keep == nil || keep(ref) {
					refs = append(refs, ref)
				}
			}
			return true
		})
	}
	return refs
}

// Renumber changes the identity old to new across the level: the node
// carrying old takes the identity new, and every reference field that
// pointed at old is rewritten to point at new. References to other
// identities are untouched. The operation is atomic with respect to
// concurrent scans; on error the level is unchanged.
//
// Errors if old is not present, if new is already taken or null, or if
// new does not fit a 32-bit identity field that must carry it.
func (lvl *Level) Renumber(old, new uint64) error {
	lvl.mu.Lock()
	defer lvl.mu.Unlock()

	if IsNullID(old) || IsNullID(new) {
		return errors.New("cannot renumber the null identity")
	}
	if old == new {
		return nil
	}
	node, ok := lvl.index[old]
	if !ok {
		return fmt.Errorf("no node has identity %d", old)
	}
	if _, taken := lvl.index[new]; taken {
		return fmt.Errorf("renumber %d to %d: %w", old, new, ErrIDCollision)
	}

	// Plan every rewrite before touching anything, so a value that cannot
	// carry the new identity leaves the level untouched.
	type edit struct {
		node  *Node
		attr  int
		value Value
	}
	var edits []edit
	for i, attr := range node.Attrs {
		if lvl.role(node.Tag, attr.Hash) != RoleID {
			continue
		}
		if id, ok := idOf(attr.Value); !ok || id != old {
			continue
		}
		v, ok := withID(attr.Value, new)
		if !ok {
			return fmt.Errorf("identity %d does not fit field %s of node %s",
				new, FormatHash(attr.Hash), node)
		}
		edits = append(edits, edit{node, i, v})
	}
	for _, f := range lvl.files {
		var planErr error
		f.Walk(func(n *Node) bool {
			for i, attr := range n.Attrs {
				if lvl.role(n.Tag, attr.Hash) != RoleRef {
					continue
				}
				if target, ok := idOf(attr.Value); !ok || target != old {
					continue
				}
				v, ok := withID(attr.Value, new)
				if !ok {
					planErr = fmt.Errorf("identity %d does not fit field %s of node %s",
						new, FormatHash(attr.Hash), n)
					return false
				}
				edits = append(edits, edit{n, i, v})
			}
			return true
		})
		if planErr != nil {
			return planErr
		}
	}

	for _, e := range edits {
		e.node.Attrs[e.attr].Value = e.value
	}
	delete(lvl.index, old)
	lvl.index[new] = node
	return nil
}

// AllocateID returns a fresh identity not present in the level's index.
// The identity is only reserved once a node carrying it is added and
// indexed.
func (lvl *Level) AllocateID() uint64 {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	return lvl.allocate(false, nil)
}

// allocate draws identities until one is free in both the index and the
// extra set. Must be called with at least the read lock held.
func (lvl *Level) allocate(fit32 bool, extra map[uint64]bool) uint64 {
	for {
		id := GenerateID()
		if fit32 {
			id &= 0xFFFFFFFF
			if id == 0 {
				continue
			}
		}
		if _, taken := lvl.index[id]; taken {
			continue
		}
		if extra[id] {
			continue
		}
		return id
	}
}

// DuplicateEntity clones the subtree of the node carrying the given
// identity and inserts the clone as its sibling. Every identity defined
// inside the subtree is replaced with a freshly allocated one, and
// references within the subtree to those identities are retargeted;
// references to nodes outside the subtree are unchanged. The clone's
// position attributes are offset by +20 on the first two axes, and its
// name gains a unique "_Copy" suffix.
func (lvl *Level) DuplicateEntity(id uint64) (*Node, error) {
	lvl.mu.Lock()
	defer lvl.mu.Unlock()

	node, ok := lvl.index[id]
	if !ok {
		return nil, fmt.Errorf("no node has identity %d", id)
	}

	var siblings []*Node
	var owner *ResourceFile
	if node.parent == nil {
		if owner = lvl.fileOf(node); owner == nil {
			return nil, fmt.Errorf("node %s with identity %d belongs to no file", node, id)
		}
		siblings = owner.Roots
	} else {
		siblings = node.parent.children
	}

	clone := node.Clone()

	// Give every identity defined inside the subtree a fresh value.
	taken := make(map[uint64]bool)
	remap := make(map[uint64]uint64)
	clone.Walk(func(n *Node) bool {
		for i, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleID {
				continue
			}
			oldID, ok := idOf(attr.Value)
			if !ok || IsNullID(oldID) {
				continue
			}
			newID, seen := remap[oldID]
			if !seen {
				_, fit32 := attr.Value.(ValueId32)
				newID = lvl.allocate(fit32, taken)
				remap[oldID] = newID
				taken[newID] = true
			}
			if v, ok := withID(attr.Value, newID); ok {
				n.Attrs[i].Value = v
			}
		}
		return true
	})

	// Retarget references to identities that were replaced above.
	clone.Walk(func(n *Node) bool {
		for i, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleRef {
				continue
			}
			target, ok := idOf(attr.Value)
			if !ok {
				continue
			}
			newID, moved := remap[target]
			if !moved {
				continue
			}
			if v, ok := withID(attr.Value, newID); ok {
				n.Attrs[i].Value = v
			}
		}
		return true
	})

	offsetPosition(clone, hashHidPos)
	offsetPosition(clone, hashHidPosPrecise)

	if base := node.Name(); base != "" {
		clone.SetName(uniqueName(base, siblings))
	}

	if node.parent == nil {
		owner.Roots = append(owner.Roots, clone)
	} else if err := clone.SetParent(node.parent); err != nil {
		return nil, err
	}

	clone.Walk(func(n *Node) bool {
		for _, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleID {
				continue
			}
			if newID, ok := idOf(attr.Value); ok && taken[newID] {
				lvl.index[newID] = n
			}
		}
		return true
	})
	return clone, nil
}

// ImportNode adopts a node built outside the level, such as one decoded
// from an exported entity document, into the named file. Every identity
// defined inside the subtree is replaced with a fresh one and references
// among them are retargeted, so an import can never collide with the
// level's existing identities. The node becomes a child of the file's
// first root.
func (lvl *Level) ImportNode(fileName string, node *Node) error {
	if node == nil {
		return errors.New("cannot import nil node")
	}
	if node.parent != nil {
		return errors.New("cannot import a node that already has a parent")
	}

	lvl.mu.Lock()
	defer lvl.mu.Unlock()

	f, ok := lvl.byName[fileName]
	if !ok {
		return fmt.Errorf("level has no file named %q", fileName)
	}
	if len(f.Roots) == 0 {
		return fmt.Errorf("file %q has no root to receive the node", fileName)
	}

	taken := make(map[uint64]bool)
	remap := make(map[uint64]uint64)
	node.Walk(func(n *Node) bool {
		for i, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleID {
				continue
			}
			oldID, ok := idOf(attr.Value)
			if !ok || IsNullID(oldID) {
				continue
			}
			newID, seen := remap[oldID]
			if !seen {
				_, fit32 := attr.Value.(ValueId32)
				newID = lvl.allocate(fit32, taken)
				remap[oldID] = newID
				taken[newID] = true
			}
			if v, ok := withID(attr.Value, newID); ok {
				n.Attrs[i].Value = v
			}
		}
		return true
	})
	node.Walk(func(n *Node) bool {
		for i, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleRef {
				continue
			}
			target, ok := idOf(attr.Value)
			if !ok {
				continue
			}
			newID, moved := remap[target]
			if !moved {
				continue
			}
			if v, ok := withID(attr.Value, newID); ok {
				n.Attrs[i].Value = v
			}
		}
		return true
	})

	if err := node.SetParent(f.Roots[0]); err != nil {
		return err
	}
	node.Walk(func(n *Node) bool {
		for _, attr := range n.Attrs {
			if lvl.role(n.Tag, attr.Hash) != RoleID {
				continue
			}
			if newID, ok := idOf(attr.Value); ok && taken[newID] {
				lvl.index[newID] = n
			}
		}
		return true
	})
	return nil
}

// offsetPosition shifts the first two axes of a position attribute by +20
// each, the paste offset used when duplicating entities.
func offsetPosition(node *Node, hash uint32) {
	switch v := node.Attr(hash).(type) {
	case ValueVector2:
		node.SetAttr(hash, ValueVector2{X: v.X + 20, Y: v.Y + 20})
	case ValueVector3:
		node.SetAttr(hash, ValueVector3{X: v.X + 20, Y: v.Y + 20, Z: v.Z})
	case ValueVector4:
		node.SetAttr(hash, ValueVector4{X: v.X + 20, Y: v.Y + 20, Z: v.Z, W: v.W})
	}
}

// uniqueName derives a copy name from base that no sibling already uses:
// "<base>_Copy", then "<base>_Copy_2", "<base>_Copy_3", and so on.
func uniqueName(base string, siblings []*Node) string {
	used := make(map[string]bool, len(siblings))
	for _, sib := range siblings {
		if name := sib.Name(); name != "" {
			used[name] = true
		}
	}
	name := base + "_Copy"
	for n := 2; used[name]; n++ {
		name = base + "_Copy_" + strconv.Itoa(n)
	}
	return name
}

// fileOf returns the file whose tree contains the given node. Must be
// called with at least the read lock held.
func (lvl *Level) fileOf(node *Node) *ResourceFile {
	root := node
	for root.parent != nil {
		root = root.parent
	}
	for _, f := range lvl.files {
		for _, r := range f.Roots {
			if r == root {
				return f
			}
		}
	}
	return nil
}

// FileNames returns the names of the level's files, sorted.
func (lvl *Level) FileNames() []string {
	lvl.mu.RLock()
	defer lvl.mu.RUnlock()
	names := make([]string, 0, len(lvl.byName))
	for name := range lvl.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
