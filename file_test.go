package fcbfile_test

import (
	"errors"
	"testing"

	"github.com/duniatools/fcbfile"
)

// table is a minimal reference table for tests.
type table map[[2]uint32]fcbfile.RefRole

func (t table) FieldRole(class, field uint32) fcbfile.RefRole {
	return t[[2]uint32{class, field}]
}

var (
	tagEntity      = fcbfile.HashName("Entity")
	tagComponents  = fcbfile.HashName("Components")
	tagWorldSector = fcbfile.HashName("WorldSector")

	fldEntityId = fcbfile.HashName("disEntityId")
	fldLink     = fcbfile.HashName("lnkEntityId")
	fldSectorId = fcbfile.HashName("Id")
)

func testTable() table {
	return table{
		{tagEntity, fldEntityId}:      fcbfile.RoleID,
		{tagEntity, fldLink}:          fcbfile.RoleRef,
		{tagWorldSector, fldSectorId}: fcbfile.RoleID,
	}
}

func newEntity(id uint64, name string, x, y, z float32) *fcbfile.Node {
	node := fcbfile.NewNode(tagEntity, nil)
	node.SetAttr(fldEntityId, fcbfile.ValueId64(id))
	node.SetName(name)
	node.SetAttrNamed("hidPos", fcbfile.ValueVector3{X: x, Y: y, Z: z})
	node.SetAttrNamed("hidPos_precise", fcbfile.ValueVector3{X: x, Y: y, Z: z})
	return node
}

// nextSectorId keeps sector identities distinct across test files.
var nextSectorId uint32 = 70

func sectorFile(name string, entities ...*fcbfile.Node) *fcbfile.ResourceFile {
	sector := fcbfile.NewNode(tagWorldSector, nil)
	sector.SetAttr(fldSectorId, fcbfile.ValueId32(nextSectorId))
	nextSectorId++
	for _, e := range entities {
		e.SetParent(sector)
	}
	return &fcbfile.ResourceFile{Name: name, Roots: []*fcbfile.Node{sector}}
}

func newTestLevel(t *testing.T, files ...*fcbfile.ResourceFile) *fcbfile.Level {
	t.Helper()
	lvl := fcbfile.NewLevel(testTable())
	for _, f := range files {
		if warn, err := lvl.AddFile(f); err != nil {
			t.Fatal(err)
		} else if warn != nil {
			t.Fatal(warn)
		}
	}
	return lvl
}

func TestNodeParenting(t *testing.T) {
	parent := fcbfile.NewNode(tagComponents, nil)
	child := fcbfile.NewNode(tagEntity, parent)
	if child.Parent() != parent {
		t.Error("expected child to be parented")
	}
	if n := parent.NumChildren(); n != 1 {
		t.Errorf("expected 1 child, got %d", n)
	}
	if err := parent.SetParent(child); err == nil {
		t.Error("expected error for circular parenting")
	}
	if err := child.SetParent(child); err == nil {
		t.Error("expected error for self parenting")
	}
	if err := child.SetParent(nil); err != nil {
		t.Fatal(err)
	}
	if parent.NumChildren() != 0 {
		t.Error("expected detached child to leave parent's children")
	}
}

func TestNodeAttrs(t *testing.T) {
	node := fcbfile.NewNode(tagEntity, nil)
	node.SetAttr(1, fcbfile.ValueUInt32(10))
	node.SetAttr(2, fcbfile.ValueUInt32(20))
	node.SetAttr(3, fcbfile.ValueUInt32(30))
	node.SetAttr(2, fcbfile.ValueUInt32(21))
	if len(node.Attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(node.Attrs))
	}
	if node.Attrs[1].Hash != 2 || node.Attr(2).(fcbfile.ValueUInt32) != 21 {
		t.Error("replacing an attribute must keep its position")
	}
	if !node.RemoveAttr(2) {
		t.Error("expected RemoveAttr to report removal")
	}
	if node.RemoveAttr(2) {
		t.Error("expected RemoveAttr to report absence")
	}
	if node.Attr(2) != nil {
		t.Error("expected removed attribute to be nil")
	}
	node.SetAttr(1, nil)
	if node.Attr(1) != nil {
		t.Error("expected nil value to remove the attribute")
	}

	node.SetAttrNamed("tplCreatureType", fcbfile.ValueString("mercenary"))
	if v, ok := node.AttrNamed("tplCreatureType").(fcbfile.ValueString); !ok || string(v) != "mercenary" {
		t.Error("unexpected result from AttrNamed")
	}
}

func TestReorderChild(t *testing.T) {
	parent := fcbfile.NewNode(tagComponents, nil)
	a := newEntity(1, "a", 0, 0, 0)
	b := newEntity(2, "b", 0, 0, 0)
	c := newEntity(3, "c", 0, 0, 0)
	for _, n := range []*fcbfile.Node{a, b, c} {
		n.SetParent(parent)
	}
	if err := parent.ReorderChild(0, 2); err != nil {
		t.Fatal(err)
	}
	order := parent.Children()
	if order[0] != b || order[1] != c || order[2] != a {
		t.Error("unexpected child order after reorder")
	}
	if err := parent.ReorderChild(2, 0); err != nil {
		t.Fatal(err)
	}
	order = parent.Children()
	if order[0] != a || order[1] != b || order[2] != c {
		t.Error("unexpected child order after second reorder")
	}
	if err := parent.ReorderChild(3, 0); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestNodeClone(t *testing.T) {
	node := newEntity(42, "Guard", 1, 2, 3)
	node.SetAttr(9, fcbfile.ValueBinHex{1, 2, 3})
	comp := fcbfile.NewNode(tagComponents, node)
	opaque := &fcbfile.Node{Tag: 0xDEAD, Raw: []byte{4, 5, 6}}
	opaque.SetParent(comp)

	clone := node.Clone()
	if clone.Parent() != nil {
		t.Error("expected clone to have no parent")
	}
	if diffs := fcbfile.DiffNodes(node, clone); len(diffs) != 0 {
		t.Fatalf("clone differs from original: %v", diffs)
	}

	clone.Attrs[len(clone.Attrs)-1].Value.(fcbfile.ValueBinHex)[0] = 99
	if node.Attr(9).(fcbfile.ValueBinHex)[0] != 1 {
		t.Error("clone attribute values alias the original")
	}
	clone.Children()[0].Children()[0].Raw[0] = 99
	if opaque.Raw[0] != 4 {
		t.Error("clone opaque payload aliases the original")
	}
}

func TestWalkPrune(t *testing.T) {
	root := fcbfile.NewNode(tagEntity, nil)
	comp := fcbfile.NewNode(tagComponents, root)
	fcbfile.NewNode(tagEntity, comp)
	var visited int
	root.Walk(func(n *fcbfile.Node) bool {
		visited++
		return n.Tag != tagComponents
	})
	if visited != 2 {
		t.Errorf("expected pruned walk to visit 2 nodes, visited %d", visited)
	}
}

func TestFindFirstChild(t *testing.T) {
	root := newEntity(1, "root", 0, 0, 0)
	comp := fcbfile.NewNode(tagComponents, root)
	inner := newEntity(2, "inner", 0, 0, 0)
	inner.SetParent(comp)

	if root.FindFirstChild(tagComponents, false) != comp {
		t.Error("unexpected result from FindFirstChild")
	}
	if root.FindFirstChild(tagEntity, false) != nil {
		t.Error("expected no direct Entity child")
	}
	if root.FindFirstChild(tagEntity, true) != inner {
		t.Error("expected recursive search to find inner entity")
	}
	if root.FindFirstNamed("inner", true) != inner {
		t.Error("unexpected result from FindFirstNamed")
	}
}

func TestLevelAddFile(t *testing.T) {
	lvl := fcbfile.NewLevel(testTable())
	if _, err := lvl.AddFile(sectorFile("sector_00", newEntity(100, "a", 0, 0, 0))); err != nil {
		t.Fatal(err)
	}
	if _, err := lvl.AddFile(sectorFile("sector_00")); err == nil {
		t.Error("expected error for duplicate file name")
	}
	if _, err := lvl.AddFile(&fcbfile.ResourceFile{}); err == nil {
		t.Error("expected error for unnamed file")
	}

	warn, err := lvl.AddFile(sectorFile("sector_01", newEntity(100, "b", 0, 0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(warn, fcbfile.ErrIDCollision) {
		t.Error("expected identity collision warning")
	}
	if lvl.Node(100).Name() != "a" {
		t.Error("expected first node to keep the colliding identity")
	}
}

func TestLevelIndex(t *testing.T) {
	e1 := newEntity(100, "a", 0, 0, 0)
	e2 := newEntity(200, "b", 0, 0, 0)
	lvl := newTestLevel(t, sectorFile("sector_00", e1, e2))

	if lvl.Node(100) != e1 || lvl.Node(200) != e2 {
		t.Error("unexpected result from Node")
	}
	if lvl.Node(300) != nil {
		t.Error("expected nil for unknown identity")
	}
	// The index holds both entities plus the sector's own identity.
	idx := lvl.Index()
	if len(idx) != 3 || idx[100] != e1 || idx[200] != e2 {
		t.Error("unexpected result from Index")
	}

	e3 := newEntity(300, "c", 0, 0, 0)
	e3.SetParent(lvl.File("sector_00").Roots[0])
	if warn := lvl.Reindex(); warn != nil {
		t.Fatal(warn)
	}
	if lvl.Node(300) != e3 {
		t.Error("expected Reindex to pick up the new entity")
	}
}

func TestScanReferences(t *testing.T) {
	e1 := newEntity(100, "a", 0, 0, 0)
	e1.SetAttr(fldLink, fcbfile.ValueId64(200))
	e2 := newEntity(200, "b", 0, 0, 0)
	lvl := newTestLevel(t, sectorFile("sector_00", e1, e2))

	refs := lvl.ScanReferences()
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	ref := refs[0]
	if ref.File != "sector_00" || ref.Node != e1 || ref.Field != fldLink || ref.Target != 200 {
		t.Errorf("unexpected reference %+v", ref)
	}
}

func TestFindDangling(t *testing.T) {
	e1 := newEntity(100, "a", 0, 0, 0)
	e1.SetAttr(fldLink, fcbfile.ValueId64(999))
	e2 := newEntity(200, "b", 0, 0, 0)
	e2.SetAttr(fldLink, fcbfile.ValueId64(100))
	e3 := newEntity(300, "c", 0, 0, 0)
	e3.SetAttr(fldLink, fcbfile.ValueId64(0))
	lvl := newTestLevel(t, sectorFile("sector_00", e1, e2, e3))

	dangling := lvl.FindDangling()
	if len(dangling) != 1 {
		t.Fatalf("expected exactly 1 dangling reference, got %d", len(dangling))
	}
	if dangling[0].Node != e1 || dangling[0].Target != 999 {
		t.Errorf("unexpected dangling reference %+v", dangling[0])
	}
}

func TestRenumber(t *testing.T) {
	e1 := newEntity(100, "a", 0, 0, 0)
	e1.SetAttr(fldLink, fcbfile.ValueId64(200))
	e2 := newEntity(200, "b", 0, 0, 0)
	e2.SetAttr(fldLink, fcbfile.ValueId64(100))
	e3 := newEntity(300, "c", 0, 0, 0)
	e3.SetAttr(fldLink, fcbfile.ValueId64(200))
	lvl := newTestLevel(t, sectorFile("sector_00", e1, e2), sectorFile("sector_01", e3))

	if err := lvl.Renumber(200, 555); err != nil {
		t.Fatal(err)
	}
	if lvl.Node(200) != nil {
		t.Error("expected old identity to be gone")
	}
	if lvl.Node(555) != e2 {
		t.Error("expected renumbered node under new identity")
	}
	if e2.Attr(fldEntityId).(fcbfile.ValueId64) != 555 {
		t.Error("expected identity attribute to be rewritten")
	}
	if e1.Attr(fldLink).(fcbfile.ValueId64) != 555 {
		t.Error("expected reference in same file to follow")
	}
	if e3.Attr(fldLink).(fcbfile.ValueId64) != 555 {
		t.Error("expected reference in other file to follow")
	}
	if e2.Attr(fldLink).(fcbfile.ValueId64) != 100 {
		t.Error("expected unrelated reference to be unchanged")
	}

	if err := lvl.Renumber(555, 100); !errors.Is(err, fcbfile.ErrIDCollision) {
		t.Error("expected collision error for taken identity")
	}
	if err := lvl.Renumber(12345, 1); err == nil {
		t.Error("expected error for unknown identity")
	}
	if err := lvl.Renumber(0, 1); err == nil {
		t.Error("expected error for null identity")
	}
	if err := lvl.Renumber(100, 100); err != nil {
		t.Error("expected renumber to itself to be a no-op")
	}
}

func TestRenumberId32(t *testing.T) {
	lvl := newTestLevel(t, sectorFile("sector_00"))
	sector := lvl.File("sector_00").Roots[0]
	id := uint64(sector.Attr(fldSectorId).(fcbfile.ValueId32))

	if err := lvl.Renumber(id, 1<<40); err == nil {
		t.Error("expected error for identity too large for a 32-bit field")
	}
	if uint64(sector.Attr(fldSectorId).(fcbfile.ValueId32)) != id {
		t.Error("expected failed renumber to leave the level unchanged")
	}
	if err := lvl.Renumber(id, id+100000); err != nil {
		t.Fatal(err)
	}
	if uint64(sector.Attr(fldSectorId).(fcbfile.ValueId32)) != id+100000 {
		t.Error("expected 32-bit identity to be rewritten")
	}
}

func TestAllocateID(t *testing.T) {
	lvl := newTestLevel(t, sectorFile("sector_00", newEntity(100, "a", 0, 0, 0)))
	a := lvl.AllocateID()
	b := lvl.AllocateID()
	if a == 0 || b == 0 {
		t.Error("allocated identity must not be null")
	}
	if a == b {
		t.Error("expected distinct identities")
	}
	if lvl.Node(a) != nil {
		t.Error("allocated identity must not be taken")
	}
}

func TestDuplicateEntity(t *testing.T) {
	e := newEntity(100, "Guard", 10, 20, 30)
	e.SetAttr(fldLink, fcbfile.ValueId64(150))
	sub := newEntity(150, "Guard_Gun", 11, 21, 31)
	sub.SetAttr(fldLink, fcbfile.ValueId64(900))
	comp := fcbfile.NewNode(tagComponents, e)
	sub.SetParent(comp)

	outside := newEntity(900, "Outpost", 0, 0, 0)
	lvl := newTestLevel(t, sectorFile("sector_00", e, outside))

	clone, err := lvl.DuplicateEntity(100)
	if err != nil {
		t.Fatal(err)
	}
	if clone.Parent() != e.Parent() {
		t.Error("expected clone to be a sibling of the original")
	}

	cloneID, _ := clone.Attr(fldEntityId).(fcbfile.ValueId64)
	if cloneID == 100 || cloneID == 0 {
		t.Error("expected clone to carry a fresh identity")
	}
	if lvl.Node(uint64(cloneID)) != clone {
		t.Error("expected clone to be indexed under its new identity")
	}
	if lvl.Node(100) != e {
		t.Error("expected original to keep its identity")
	}

	cloneSub := clone.FindFirstChild(tagEntity, true)
	if cloneSub == nil {
		t.Fatal("expected cloned subtree to keep its structure")
	}
	subID, _ := cloneSub.Attr(fldEntityId).(fcbfile.ValueId64)
	if subID == 150 || subID == 0 {
		t.Error("expected nested identity to be reallocated")
	}
	if clone.Attr(fldLink).(fcbfile.ValueId64) != subID {
		t.Error("expected internal reference to follow the new identity")
	}
	if cloneSub.Attr(fldLink).(fcbfile.ValueId64) != 900 {
		t.Error("expected external reference to be unchanged")
	}

	pos := clone.AttrNamed("hidPos").(fcbfile.ValueVector3)
	if pos.X != 30 || pos.Y != 40 || pos.Z != 30 {
		t.Errorf("unexpected clone position %v", pos)
	}
	precise := clone.AttrNamed("hidPos_precise").(fcbfile.ValueVector3)
	if precise.X != 30 || precise.Y != 40 {
		t.Errorf("unexpected clone precise position %v", precise)
	}
	orig := e.AttrNamed("hidPos").(fcbfile.ValueVector3)
	if orig.X != 10 || orig.Y != 20 {
		t.Error("expected original position to be unchanged")
	}

	if clone.Name() != "Guard_Copy" {
		t.Errorf("unexpected clone name %q", clone.Name())
	}
	second, err := lvl.DuplicateEntity(100)
	if err != nil {
		t.Fatal(err)
	}
	if second.Name() != "Guard_Copy_2" {
		t.Errorf("unexpected second clone name %q", second.Name())
	}

	if _, err := lvl.DuplicateEntity(424242); err == nil {
		t.Error("expected error for unknown identity")
	}
}

func TestDuplicateEntityRoot(t *testing.T) {
	e := newEntity(100, "Solo", 1, 2, 3)
	f := &fcbfile.ResourceFile{Name: "entitylibrary", Roots: []*fcbfile.Node{e}}
	lvl := newTestLevel(t, f)

	clone, err := lvl.DuplicateEntity(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Roots) != 2 || f.Roots[1] != clone {
		t.Error("expected clone of a root node to be appended to the file roots")
	}
}

func TestDiffFiles(t *testing.T) {
	// Identical trees must be built with identical identities, so this test
	// does not use sectorFile.
	build := func() *fcbfile.ResourceFile {
		sector := fcbfile.NewNode(tagWorldSector, nil)
		sector.SetAttr(fldSectorId, fcbfile.ValueId32(7))
		newEntity(1, "e", 0, 0, 0).SetParent(sector)
		return &fcbfile.ResourceFile{Name: "s", Roots: []*fcbfile.Node{sector}}
	}
	a := build()
	b := build()
	if diffs := fcbfile.DiffFiles(a, b); len(diffs) != 0 {
		t.Fatalf("expected no differences, got %v", diffs)
	}
	b.Roots[0].Children()[0].SetAttrNamed("hidPos", fcbfile.ValueVector3{X: 9})
	if diffs := fcbfile.DiffFiles(a, b); len(diffs) == 0 {
		t.Error("expected value difference to be reported")
	}
	b = build()
	b.Compressed = true
	if diffs := fcbfile.DiffFiles(a, b); len(diffs) != 1 {
		t.Error("expected compression flag difference to be reported")
	}
}
