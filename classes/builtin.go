package classes

import (
	"github.com/duniatools/fcbfile"
)

func fieldSet(list ...Field) map[uint32]Field {
	m := make(map[uint32]Field, len(list))
	for _, f := range list {
		m[fcbfile.HashName(f.Name)] = f
	}
	return m
}

// Builtin returns the stock vocabulary: the classes and fields recovered
// from the original level tables. The result is a fresh registry, so
// callers may merge loaded documents into it freely.
func Builtin() *Registry {
	reg := New()

	reg.AddClass(Class{
		Name: "WorldSector",
		Fields: fieldSet(
			Field{Name: "Id", Kind: fcbfile.KindId32, Role: fcbfile.RoleID},
			Field{Name: "X", Kind: fcbfile.KindInt32},
			Field{Name: "Y", Kind: fcbfile.KindInt32},
		),
	})

	// Entity strings predate UTF-8 and carry Windows-1252 text.
	reg.AddClass(Class{
		Name:   "Entity",
		Legacy: true,
		Fields: fieldSet(
			Field{Name: "disEntityId", Kind: fcbfile.KindId64, Role: fcbfile.RoleID},
			Field{Name: "hidName", Kind: fcbfile.KindString},
			Field{Name: "hidPos", Kind: fcbfile.KindVector3},
			Field{Name: "hidPos_precise", Kind: fcbfile.KindVector3},
			Field{Name: "hidAngles", Kind: fcbfile.KindVector3},
			Field{Name: "tplCreatureType", Kind: fcbfile.KindString},
			Field{Name: "tplArchetypeId", Kind: fcbfile.KindHash64},
			Field{Name: "lnkEntityId", Kind: fcbfile.KindId64, Role: fcbfile.RoleRef},
		),
	})

	reg.AddClass(Class{Name: "Components"})

	reg.AddClass(Class{
		Name: "EntityLibrary",
		Fields: fieldSet(
			Field{Name: "Name", Kind: fcbfile.KindString},
		),
	})
	reg.AddClass(Class{Name: "EntityLibraries"})

	reg.AddClass(Class{Name: "Managers"})
	reg.AddClass(Class{
		Name: "Manager",
		Fields: fieldSet(
			Field{Name: "Name", Kind: fcbfile.KindString},
			Field{Name: "refEntityId", Kind: fcbfile.KindId64, Role: fcbfile.RoleRef, Target: "worldsectors"},
		),
	})

	reg.AddClass(Class{Name: "MapsData"})
	reg.AddClass(Class{
		Name: "MapData",
		Fields: fieldSet(
			Field{Name: "Name", Kind: fcbfile.KindString},
			Field{Name: "Size", Kind: fcbfile.KindUInt32},
		),
	})

	reg.AddClass(Class{Name: "Omnis"})
	reg.AddClass(Class{Name: "SectorsDep"})
	reg.AddClass(Class{
		Name: "SectorDependency",
		Fields: fieldSet(
			Field{Name: "SectorId", Kind: fcbfile.KindId32, Role: fcbfile.RoleRef},
		),
	})

	for _, name := range []string{
		"Archetypes",
		"Group",
		"hidBoundMin",
		"hidBoundMax",
	} {
		reg.AddName(name)
	}
	return reg
}
