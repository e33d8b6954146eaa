package declare_test

import (
	"bytes"
	"testing"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/declare"
)

func TestDeclare(t *testing.T) {
	f := declare.Root{
		declare.Object("WorldSector",
			declare.Field("Id", fcbfile.KindId32, 70),
			declare.Field("X", fcbfile.KindInt32, -3),
			declare.Object("Entity",
				declare.Field("disEntityId", fcbfile.KindId64, 7700),
				declare.Field("hidName", fcbfile.KindString, "Guard"),
				declare.Field("hidPos", fcbfile.KindVector3, 1, 2, 3),
			),
		),
	}.Declare()

	sector := fcbfile.NewNode(fcbfile.HashName("WorldSector"), nil)
	sector.SetAttrNamed("Id", fcbfile.ValueId32(70))
	sector.SetAttrNamed("X", fcbfile.ValueInt32(-3))
	entity := fcbfile.NewNode(fcbfile.HashName("Entity"), sector)
	entity.SetAttrNamed("disEntityId", fcbfile.ValueId64(7700))
	entity.SetAttrNamed("hidName", fcbfile.ValueString("Guard"))
	entity.SetAttrNamed("hidPos", fcbfile.ValueVector3{X: 1, Y: 2, Z: 3})
	want := &fcbfile.ResourceFile{Roots: []*fcbfile.Node{sector}}

	if diffs := fcbfile.DiffFiles(f, want); len(diffs) > 0 {
		t.Error("declared file differs:", diffs)
	}
}

func TestDeclareByHash(t *testing.T) {
	node := declare.ObjectTag(0x0BADF00D,
		declare.FieldHash(0xABCD1234, fcbfile.KindUInt32, 9),
	).Declare()

	if node.Tag != 0x0BADF00D {
		t.Error("tag:", fcbfile.FormatHash(node.Tag))
	}
	if v, ok := node.Attr(0xABCD1234).(fcbfile.ValueUInt32); !ok || v != 9 {
		t.Error("attribute:", node.Attr(0xABCD1234))
	}
}

func TestDeclareRaw(t *testing.T) {
	node := declare.Object("NoSuchClass",
		declare.Raw([]byte{1, 2, 3, 0xFF}),
	).Declare()

	if !bytes.Equal(node.Raw, []byte{1, 2, 3, 0xFF}) {
		t.Error("payload:", node.Raw)
	}
	if len(node.Attrs) != 0 {
		t.Error("opaque node has attributes")
	}
}

func TestFieldValues(t *testing.T) {
	cases := []struct {
		name string
		prop interface{ Declare() fcbfile.Value }
		want fcbfile.Value
	}{
		{"bool", declare.Field("f", fcbfile.KindBool, true), fcbfile.ValueBool(true)},
		{"int from float", declare.Field("f", fcbfile.KindInt16, 3.0), fcbfile.ValueInt16(3)},
		{"negative", declare.Field("f", fcbfile.KindInt32, -3), fcbfile.ValueInt32(-3)},
		{"float", declare.Field("f", fcbfile.KindFloat64, 0.25), fcbfile.ValueFloat64(0.25)},
		{"hash", declare.Field("f", fcbfile.KindHash64, uint64(0xE40F2CB2A24B81C9)), fcbfile.ValueHash64(0xE40F2CB2A24B81C9)},
		{"string bytes", declare.Field("f", fcbfile.KindString, []byte("ok")), fcbfile.ValueString("ok")},
		{"vector short", declare.Field("f", fcbfile.KindVector4, 1, 2), fcbfile.ValueVector4{X: 1, Y: 2}},
		{"quaternion", declare.Field("f", fcbfile.KindQuaternion, 0, 0, 0, 1), fcbfile.ValueQuaternion{W: 1}},
		{"pass-through", declare.Field("f", fcbfile.KindVector3, fcbfile.ValueVector3{X: 7}), fcbfile.ValueVector3{X: 7}},
		{"mismatch zeroes", declare.Field("f", fcbfile.KindBool, "yes"), fcbfile.ValueBool(false)},
		{"missing zeroes", declare.Field("f", fcbfile.KindString), fcbfile.ValueString("")},
	}
	for _, c := range cases {
		got := c.prop.Declare()
		if got == nil || got.Kind() != c.want.Kind() || !bytes.Equal(got.Bytes(), c.want.Bytes()) {
			t.Errorf("%s: declared %#v, want %#v", c.name, got, c.want)
		}
	}
}
