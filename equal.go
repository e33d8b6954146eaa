package fcbfile

import (
	"bytes"
	"fmt"
	"strconv"
)

// DiffFiles reports the differences between two resource files as
// human-readable strings, each prefixed with a path locating the divergent
// node. An empty result means the files are semantically equal: same
// compression flag, same tags, same ordered attributes with bit-identical
// values, same child order, same opaque payloads.
func DiffFiles(a, b *ResourceFile) []string {
	var diffs []string
	if a.Compressed != b.Compressed {
		diffs = append(diffs, fmt.Sprintf("compressed: %v != %v", a.Compressed, b.Compressed))
	}
	if len(a.Roots) != len(b.Roots) {
		diffs = append(diffs, fmt.Sprintf("root count: %d != %d", len(a.Roots), len(b.Roots)))
		return diffs
	}
	for i := range a.Roots {
		diffs = diffNode(pathTo("", a.Roots[i], i), a.Roots[i], b.Roots[i], diffs)
	}
	return diffs
}

// DiffNodes reports the differences between two node subtrees in the same
// form as DiffFiles.
func DiffNodes(a, b *Node) []string {
	return diffNode(pathTo("", a, 0), a, b, nil)
}

func pathTo(parent string, node *Node, index int) string {
	return parent + "/" + node.String() + "[" + strconv.Itoa(index) + "]"
}

func diffNode(path string, a, b *Node, diffs []string) []string {
	if a.Tag != b.Tag {
		return append(diffs, fmt.Sprintf("%s: tag %s != %s", path, FormatHash(a.Tag), FormatHash(b.Tag)))
	}
	if (a.Raw != nil) != (b.Raw != nil) {
		return append(diffs, fmt.Sprintf("%s: opaque %v != %v", path, a.Raw != nil, b.Raw != nil))
	}
	if a.Raw != nil {
		if !bytes.Equal(a.Raw, b.Raw) {
			diffs = append(diffs, fmt.Sprintf("%s: opaque payloads differ", path))
		}
		return diffs
	}
	if len(a.Attrs) != len(b.Attrs) {
		diffs = append(diffs, fmt.Sprintf("%s: attribute count %d != %d", path, len(a.Attrs), len(b.Attrs)))
	} else {
		for i := range a.Attrs {
			aa, ba := a.Attrs[i], b.Attrs[i]
			switch {
			case aa.Hash != ba.Hash:
				diffs = append(diffs, fmt.Sprintf("%s: attribute %d: field %s != %s",
					path, i, FormatHash(aa.Hash), FormatHash(ba.Hash)))
			case aa.Value.Kind() != ba.Value.Kind():
				diffs = append(diffs, fmt.Sprintf("%s: attribute %s: kind %s != %s",
					path, FormatHash(aa.Hash), aa.Value.Kind(), ba.Value.Kind()))
			case !bytes.Equal(aa.Value.Bytes(), ba.Value.Bytes()):
				diffs = append(diffs, fmt.Sprintf("%s: attribute %s: %s != %s",
					path, FormatHash(aa.Hash), aa.Value, ba.Value))
			}
		}
	}
	if a.NumChildren() != b.NumChildren() {
		diffs = append(diffs, fmt.Sprintf("%s: child count %d != %d", path, a.NumChildren(), b.NumChildren()))
		return diffs
	}
	for i, ac := range a.children {
		diffs = diffNode(pathTo(path, ac, i), ac, b.children[i], diffs)
	}
	return diffs
}
