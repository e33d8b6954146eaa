package convert

import (
	"fmt"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/fcbx"
	"github.com/duniatools/fcbfile/markup"
)

// ImportEntity decodes an exported entity tag and inserts it into the
// named file at the given position. The entity and everything under it
// receive fresh identities, so the same export can be imported any number
// of times. The file becomes Dirty.
func (o *Orchestrator) ImportEntity(name string, tag *markup.Tag, pos fcbfile.ValueVector3) (*fcbfile.Node, error) {
	o.mu.Lock()
	e, ok := o.entries[name]
	lvl := o.level
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no loaded file %q", name)
	}
	if lvl == nil {
		return nil, fmt.Errorf("no loaded level")
	}

	node, warn, err := fcbx.Decoder{Classes: o.Classes}.DecodeNode(tag)
	if err != nil {
		return nil, err
	}
	if warn != nil {
		o.Logger.Warn().Str("file", name).Err(warn).Msg("import oddities")
	}

	if err := lvl.ImportNode(e.name, node); err != nil {
		return nil, err
	}
	node.SetAttrNamed("hidPos", pos)
	if node.AttrNamed("hidPos_precise") != nil {
		node.SetAttrNamed("hidPos_precise", pos)
	}

	o.mu.Lock()
	e.state = Dirty
	o.mu.Unlock()
	o.Logger.Info().Str("file", name).Str("entity", node.String()).Msg("entity imported")
	return node, nil
}
