// The classes package provides the name registry for resource containers:
// the mapping between 32-bit name hashes and the class and field names
// they were derived from, along with per-field value kinds and reference
// roles.
//
// The binary format stores only hashes. A registry restores the
// human-readable vocabulary, decides which nodes a codec may parse
// structurally, and tells the reference resolver which fields define or
// refer to identities. Registries are extended with YAML documents, so a
// vocabulary recovered by reverse engineering can grow without code
// changes.
package classes

import (
	"fmt"
	"io"
	"os"

	"github.com/duniatools/fcbfile"
	"gopkg.in/yaml.v3"
)

// Field describes one field of a registered class.
type Field struct {
	// Name is the field name the hash was derived from.
	Name string

	// Kind is the field's expected value kind, or KindInvalid when the
	// layout is not pinned down.
	Kind fcbfile.Kind

	// Role is the field's part in the identity graph.
	Role fcbfile.RefRole

	// Target names the level file the reference points into, when known
	// to differ from the field's own file.
	Target string
}

// Class describes a registered class. A class with no fields is still
// known: codecs parse its nodes structurally and fall back to hash display
// names for its fields.
type Class struct {
	// Name is the class name the tag hash was derived from.
	Name string

	// Legacy marks classes whose string values use the Windows-1252 code
	// page instead of UTF-8.
	Legacy bool

	// Fields maps field-name hashes to their descriptions.
	Fields map[uint32]Field
}

// Registry maps name hashes to classes and field names.
type Registry struct {
	classes map[uint32]*Class
	names   map[uint32]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		classes: make(map[uint32]*Class),
		names:   make(map[uint32]string),
	}
}

// Hash returns the hash of a class or field name.
func (reg *Registry) Hash(name string) uint32 {
	return fcbfile.HashName(name)
}

// Class returns the class registered under the given tag, or nil.
func (reg *Registry) Class(tag uint32) *Class {
	if reg == nil {
		return nil
	}
	return reg.classes[tag]
}

// Known reports whether the tag names a registered class, and therefore
// whether its nodes may be parsed structurally.
func (reg *Registry) Known(tag uint32) bool {
	return reg.Class(tag) != nil
}

// Name returns the recorded name for a class or field hash.
func (reg *Registry) Name(hash uint32) (string, bool) {
	if reg == nil {
		return "", false
	}
	name, ok := reg.names[hash]
	return name, ok
}

// Field returns the description of a field on a class. The second result
// reports whether the field is declared; an undeclared field on a known
// class is still decoded, using the value kind stored in the container.
func (reg *Registry) Field(class, field uint32) (Field, bool) {
	c := reg.Class(class)
	if c == nil {
		return Field{}, false
	}
	f, ok := c.Fields[field]
	return f, ok
}

// FieldRole implements fcbfile.RefTable.
func (reg *Registry) FieldRole(class, field uint32) fcbfile.RefRole {
	f, ok := reg.Field(class, field)
	if !ok {
		return fcbfile.RoleNone
	}
	return f.Role
}

// FieldKind returns the declared kind of a field on a class, or
// KindInvalid if the field is not declared.
func (reg *Registry) FieldKind(class, field uint32) fcbfile.Kind {
	f, _ := reg.Field(class, field)
	return f.Kind
}

// Legacy reports whether string values of the given class use the
// Windows-1252 code page.
func (reg *Registry) Legacy(class uint32) bool {
	c := reg.Class(class)
	return c != nil && c.Legacy
}

// AddClass registers a class by name, replacing any existing registration
// with the same tag, and records the class and field names for display.
// Returns the class tag.
func (reg *Registry) AddClass(c Class) uint32 {
	tag := fcbfile.HashName(c.Name)
	stored := &Class{Name: c.Name, Legacy: c.Legacy, Fields: make(map[uint32]Field, len(c.Fields))}
	reg.names[tag] = c.Name
	for hash, f := range c.Fields {
		stored.Fields[hash] = f
		if f.Name != "" {
			reg.names[hash] = f.Name
		}
	}
	reg.classes[tag] = stored
	return tag
}

// AddName records a display name for a hash without declaring a class.
func (reg *Registry) AddName(name string) uint32 {
	hash := fcbfile.HashName(name)
	reg.names[hash] = name
	return hash
}

// Merge copies every class and name of other into reg, with other's
// entries replacing existing ones.
func (reg *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for hash, name := range other.names {
		reg.names[hash] = name
	}
	for tag, c := range other.classes {
		merged := &Class{Name: c.Name, Legacy: c.Legacy, Fields: make(map[uint32]Field, len(c.Fields))}
		for hash, f := range c.Fields {
			merged.Fields[hash] = f
		}
		reg.classes[tag] = merged
	}
}

////////////////////////////////////////////////////////////////

type yamlField struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Role   string `yaml:"role"`
	Target string `yaml:"target"`
}

type yamlClass struct {
	Name   string      `yaml:"name"`
	Legacy bool        `yaml:"legacy"`
	Fields []yamlField `yaml:"fields"`
}

type yamlDoc struct {
	Classes []yamlClass `yaml:"classes"`
	Names   []string    `yaml:"names"`
}

// LoadYAML reads a registry document. The document lists classes with
// their fields, and optionally bare names whose hashes should resolve for
// display:
//
//	classes:
//	  - name: Entity
//	    legacy: true
//	    fields:
//	      - {name: disEntityId, kind: Id64, role: id}
//	      - {name: hidPos, kind: Vector3}
//	names:
//	  - hidAngles
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc yamlDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode registry document: %w", err)
	}
	reg := New()
	for _, yc := range doc.Classes {
		if yc.Name == "" {
			return nil, fmt.Errorf("registry class without a name")
		}
		c := Class{Name: yc.Name, Legacy: yc.Legacy, Fields: make(map[uint32]Field, len(yc.Fields))}
		for _, yf := range yc.Fields {
			if yf.Name == "" {
				return nil, fmt.Errorf("class %q: field without a name", yc.Name)
			}
			f := Field{Name: yf.Name, Target: yf.Target}
			if yf.Kind != "" {
				if f.Kind = fcbfile.KindFromString(yf.Kind); f.Kind == fcbfile.KindInvalid {
					return nil, fmt.Errorf("class %q: field %q has unknown kind %q", yc.Name, yf.Name, yf.Kind)
				}
			}
			switch yf.Role {
			case "", "none":
			case "id":
				f.Role = fcbfile.RoleID
			case "ref":
				f.Role = fcbfile.RoleRef
			default:
				return nil, fmt.Errorf("class %q: field %q has unknown role %q", yc.Name, yf.Name, yf.Role)
			}
			c.Fields[fcbfile.HashName(yf.Name)] = f
		}
		reg.AddClass(c)
	}
	for _, name := range doc.Names {
		if name == "" {
			return nil, fmt.Errorf("registry name list contains an empty name")
		}
		reg.AddName(name)
	}
	return reg, nil
}

// LoadFile reads a registry document from a file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reg, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}
