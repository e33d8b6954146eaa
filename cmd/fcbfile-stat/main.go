// The fcbfile-stat command displays statistics for a resource container
// or a whole level directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/convert"
	"github.com/duniatools/fcbfile/fcb"
)

const usage = `usage: fcbfile-stat [flags] [INPUT] [OUTPUT]

Reads a binary resource container from INPUT, or a whole level when INPUT
is a directory, and writes statistics to OUTPUT: nodes and attributes per
class and value kind, the largest string and raw attributes, and
references that resolve to no identity.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then
stdin is used. If OUTPUT is "-" or unspecified, then stdout is used.
Warnings and errors are written to stderr.

flags:
`

type AttrLen struct {
	Class  string
	Field  string
	Kind   string
	Length int
}

func (a AttrLen) String() string {
	return fmt.Sprintf("%s.%s:%s(%d)", a.Class, a.Field, a.Kind, a.Length)
}

type AttrLenCount map[AttrLen]int

func (p AttrLenCount) MarshalJSON() ([]byte, error) {
	list := []AttrLen{}
	for k := range p {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Length > list[j].Length
	})
	if len(list) > 20 {
		list = list[:20]
	}
	return json.Marshal(list)
}

type Stats struct {
	// Number of files examined.
	FileCount int

	// Number of nodes overall, and of those, how many are preserved
	// opaque payloads.
	NodeCount   int
	OpaqueCount int

	// Number of attributes overall.
	AttrCount int

	// Number of nodes per class.
	ClassCount map[string]int

	// Number of attributes per value kind.
	KindCount map[string]int

	LargestAttrs AttrLenCount `json:",omitempty"`

	// References that resolve to no identity in the examined files.
	Dangling []string `json:",omitempty"`
}

func display(reg *classes.Registry, hash uint32) string {
	if name, ok := reg.Name(hash); ok {
		return name
	}
	return fcbfile.FormatHash(hash)
}

func (s *Stats) Fill(reg *classes.Registry, files ...*fcbfile.ResourceFile) {
	s.ClassCount = map[string]int{}
	s.KindCount = map[string]int{}
	s.LargestAttrs = AttrLenCount{}
	for _, f := range files {
		s.FileCount++
		f.Walk(func(n *fcbfile.Node) bool {
			s.NodeCount++
			class := display(reg, n.Tag)
			s.ClassCount[class]++
			if n.Raw != nil {
				s.OpaqueCount++
				return true
			}
			for _, attr := range n.Attrs {
				s.AttrCount++
				if attr.Value == nil {
					continue
				}
				kind := attr.Value.Kind().String()
				s.KindCount[kind]++
				var length int
				switch v := attr.Value.(type) {
				case fcbfile.ValueString:
					length = len(v)
				case fcbfile.ValueBinHex:
					length = len(v)
				default:
					continue
				}
				s.LargestAttrs[AttrLen{
					Class:  class,
					Field:  display(reg, attr.Hash),
					Kind:   kind,
					Length: length}]++
			}
			return true
		})
	}
}

func (s *Stats) FillDangling(reg *classes.Registry, lvl *fcbfile.Level) {
	for _, ref := range lvl.FindDangling() {
		s.Dangling = append(s.Dangling, fmt.Sprintf("%s: %s.%s -> %d",
			ref.File, ref.Node, display(reg, ref.Field), ref.Target))
	}
}

func main() {
	classesPath := flag.String("classes", "", "merge a YAML class registry over the builtin vocabulary")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	reg := classes.Builtin()
	if *classesPath != "" {
		more, err := classes.LoadFile(*classesPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("load classes: %w", err))
			return
		}
		reg.Merge(more)
	}

	args := flag.Args()
	in := "-"
	if len(args) >= 1 {
		in = args[0]
	}

	var output io.Writer = os.Stdout
	if len(args) >= 2 && args[1] != "-" {
		out, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer out.Close()
		defer func() {
			if err := out.Sync(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
			}
		}()
		output = out
	}

	var stats Stats
	if fi, err := os.Stat(in); in != "-" && err == nil && fi.IsDir() {
		// A directory is statted as a level: sector data is discovered the
		// same way the orchestrator finds it.
		lp, _ := convert.FindLevel(in)
		o := &convert.Orchestrator{Classes: reg}
		lvl, warn, err := o.LoadLevel(context.Background(), in, lp.Sectors)
		if warn != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("load warning: %w", warn))
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("load error: %w", err))
		}
		if lvl != nil {
			stats.Fill(reg, lvl.Files()...)
			stats.FillDangling(reg, lvl)
		}
	} else {
		var input io.Reader = os.Stdin
		name := "stdin"
		if in != "-" {
			f, err := os.Open(in)
			if err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
				return
			}
			input = f
			defer f.Close()
			name = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		}

		f, warn, err := fcb.Decoder{Classes: reg}.Decode(input)
		if warn != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("decode warning: %w", warn))
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		}
		if f != nil {
			f.Name = name
			stats.Fill(reg, f)
			lvl := fcbfile.NewLevel(reg)
			if warn, err := lvl.AddFile(f); err == nil {
				if warn != nil {
					fmt.Fprintln(os.Stderr, fmt.Errorf("index warning: %w", warn))
				}
				stats.FillDangling(reg, lvl)
			}
		}
	}

	je := json.NewEncoder(output)
	je.SetEscapeHTML(false)
	je.SetIndent("", "\t")
	if err := je.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
