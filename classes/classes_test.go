package classes_test

import (
	"strings"
	"testing"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
)

func TestBuiltin(t *testing.T) {
	reg := classes.Builtin()

	tag := fcbfile.HashName("Entity")
	if !reg.Known(tag) {
		t.Fatal("expected Entity to be known")
	}
	if name, ok := reg.Name(tag); !ok || name != "Entity" {
		t.Error("unexpected result from Name")
	}
	if !reg.Legacy(tag) {
		t.Error("expected Entity strings to be legacy encoded")
	}
	if reg.Legacy(fcbfile.HashName("WorldSector")) {
		t.Error("expected WorldSector strings to be UTF-8")
	}

	if reg.FieldRole(tag, fcbfile.HashName("disEntityId")) != fcbfile.RoleID {
		t.Error("expected disEntityId to define an identity")
	}
	if reg.FieldRole(tag, fcbfile.HashName("lnkEntityId")) != fcbfile.RoleRef {
		t.Error("expected lnkEntityId to be a reference")
	}
	if reg.FieldRole(tag, fcbfile.HashName("hidPos")) != fcbfile.RoleNone {
		t.Error("expected hidPos to have no reference role")
	}
	if reg.FieldKind(tag, fcbfile.HashName("hidPos")) != fcbfile.KindVector3 {
		t.Error("unexpected kind for hidPos")
	}

	if reg.Known(fcbfile.HashName("NotARealClass")) {
		t.Error("expected unknown class to be unknown")
	}
}

func TestRegistryNil(t *testing.T) {
	var reg *classes.Registry
	if reg.Class(1) != nil {
		t.Error("expected nil class from nil registry")
	}
	if reg.Known(1) {
		t.Error("expected nil registry to know nothing")
	}
	if _, ok := reg.Name(1); ok {
		t.Error("expected no names from nil registry")
	}
	if reg.FieldRole(1, 2) != fcbfile.RoleNone {
		t.Error("expected RoleNone from nil registry")
	}
}

const registryDoc = `
classes:
  - name: Vehicle
    legacy: true
    fields:
      - {name: vehEntityId, kind: Id64, role: id}
      - {name: vehDriverId, kind: Id64, role: ref, target: worldsectors}
      - {name: vehModel, kind: String}
names:
  - hidScale
`

func TestLoadYAML(t *testing.T) {
	reg, err := classes.LoadYAML(strings.NewReader(registryDoc))
	if err != nil {
		t.Fatal(err)
	}
	tag := reg.Hash("Vehicle")
	if !reg.Known(tag) {
		t.Fatal("expected Vehicle to be known")
	}
	if !reg.Legacy(tag) {
		t.Error("expected legacy flag to load")
	}
	f, ok := reg.Field(tag, reg.Hash("vehDriverId"))
	if !ok {
		t.Fatal("expected vehDriverId to be declared")
	}
	if f.Kind != fcbfile.KindId64 || f.Role != fcbfile.RoleRef || f.Target != "worldsectors" {
		t.Errorf("unexpected field %+v", f)
	}
	if name, ok := reg.Name(reg.Hash("hidScale")); !ok || name != "hidScale" {
		t.Error("expected bare name to resolve")
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	cases := []string{
		"classes:\n  - fields:\n      - {name: x}\n",
		"classes:\n  - name: C\n    fields:\n      - {kind: Id64}\n",
		"classes:\n  - name: C\n    fields:\n      - {name: x, kind: Id63}\n",
		"classes:\n  - name: C\n    fields:\n      - {name: x, role: owner}\n",
		"klasses: []\n",
		"names:\n  - \"\"\n",
	}
	for i, doc := range cases {
		if _, err := classes.LoadYAML(strings.NewReader(doc)); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestMerge(t *testing.T) {
	reg := classes.Builtin()
	patch, err := classes.LoadYAML(strings.NewReader(`
classes:
  - name: Entity
    fields:
      - {name: disEntityId, kind: Id64, role: id}
      - {name: hidCustom, kind: Float32}
`))
	if err != nil {
		t.Fatal(err)
	}
	reg.Merge(patch)

	tag := reg.Hash("Entity")
	if reg.FieldKind(tag, reg.Hash("hidCustom")) != fcbfile.KindFloat32 {
		t.Error("expected merged field to be declared")
	}
	// The patch replaces the whole class, so undeclared fields are gone.
	if _, ok := reg.Field(tag, reg.Hash("hidPos")); ok {
		t.Error("expected replaced class to drop old fields")
	}
	if reg.Legacy(tag) {
		t.Error("expected replaced class to use the patch's legacy flag")
	}
	// Display names from the replaced class survive.
	if name, ok := reg.Name(reg.Hash("hidPos")); !ok || name != "hidPos" {
		t.Error("expected old display names to survive a merge")
	}
}
