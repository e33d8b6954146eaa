// The fcbfile-conv command converts binary resource containers to their
// editable markup form, and back.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
	"github.com/duniatools/fcbfile/fcb"
	"github.com/duniatools/fcbfile/fcbx"
	"github.com/duniatools/fcbfile/markup"
)

const usage = `usage: fcbfile-conv [flags] [INPUT] [OUTPUT]

Converts a binary resource container to its markup form, or back.

An INPUT ending in .fcb converts to markup; an INPUT ending in .xml
converts to binary. When OUTPUT is unspecified the conventional sibling
name is used: <container>.converted.xml next to a container, or the
container path with that suffix removed next to a markup document. If
INPUT is "-" or unspecified, stdin is read and -from decides its form; if
OUTPUT is "-", stdout is written. Warnings and errors are written to
stderr.

If INPUT is a directory, every container file directly in it converts to
its markup sibling; with -back, every markup file converts back instead.

flags:
`

const markupSuffix = ".converted.xml"

type converter struct {
	reg        *classes.Registry
	noCompress bool
}

func isMarkup(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xml")
}

// binaryName derives the container path of a markup document.
func binaryName(path string) string {
	if strings.HasSuffix(strings.ToLower(path), markupSuffix) {
		return path[:len(path)-len(markupSuffix)]
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".fcb"
}

func (c converter) toMarkup(r io.Reader, w io.Writer) (warn, err error) {
	f, warn, err := fcb.Decoder{Classes: c.reg}.Decode(r)
	if err != nil {
		return warn, err
	}
	doc, err := fcbx.Encoder{Classes: c.reg}.Encode(f)
	if err != nil {
		return warn, err
	}
	if _, err := doc.WriteTo(w); err != nil {
		return warn, err
	}
	return warn, nil
}

func (c converter) toBinary(r io.Reader, w io.Writer) (warn, err error) {
	doc := new(markup.Document)
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}
	f, warn, err := fcbx.Decoder{Classes: c.reg}.Decode(doc)
	if err != nil {
		return warn, err
	}
	ew, err := fcb.Encoder{Classes: c.reg, NoCompress: c.noCompress}.Encode(w, f)
	return errors.Union(warn, ew), err
}

// file converts src to dst, removing a partially written dst on failure.
func (c converter) file(src, dst string, back bool) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	var warn, cerr error
	if back {
		warn, cerr = c.toBinary(in, out)
	} else {
		warn, cerr = c.toMarkup(in, out)
	}
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("%s: warning: %w", filepath.Base(src), warn))
	}
	if cerr != nil {
		out.Close()
		os.Remove(dst)
		return cerr
	}
	return out.Close()
}

func (c converter) dir(dir string, back bool) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	converted := 0
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		low := strings.ToLower(name)
		var src, dst string
		if back {
			if !strings.HasSuffix(low, markupSuffix) {
				continue
			}
			src = filepath.Join(dir, name)
			dst = binaryName(src)
		} else {
			if !strings.HasSuffix(low, ".fcb") {
				continue
			}
			src = filepath.Join(dir, name)
			dst = src + markupSuffix
		}
		if err := c.file(src, dst, back); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("%s: %w", name, err))
			continue
		}
		converted++
	}
	fmt.Fprintln(os.Stderr, converted, "files converted")
}

func main() {
	classesPath := flag.String("classes", "", "merge a YAML class registry over the builtin vocabulary")
	back := flag.Bool("back", false, "directory mode: convert markup files back to containers")
	from := flag.String("from", "fcb", `form of stdin input: "fcb" or "xml"`)
	noCompress := flag.Bool("nocompress", false, "write containers uncompressed even when the source was compressed")
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
	conv := converter{reg: reg, noCompress: *noCompress}

	args := flag.Args()
	in := "-"
	if len(args) >= 1 {
		in = args[0]
	}
	out := ""
	if len(args) >= 2 {
		out = args[1]
	}

	if in != "-" {
		if fi, err := os.Stat(in); err == nil && fi.IsDir() {
			conv.dir(in, *back)
			return
		}
	}

	var input io.Reader = os.Stdin
	toMarkup := *from != "xml"
	if in != "-" {
		toMarkup = !isMarkup(in)
		f, err := os.Open(in)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
			return
		}
		input = f
		defer f.Close()
	}

	if out == "" {
		switch {
		case in == "-":
			out = "-"
		case toMarkup:
			out = in + markupSuffix
		default:
			out = binaryName(in)
		}
	}
	var output io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer f.Close()
		defer func() {
			if err := f.Sync(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
			}
		}()
		output = f
	}

	var warn, err error
	if toMarkup {
		warn, err = conv.toMarkup(input, output)
	} else {
		warn, err = conv.toBinary(input, output)
	}
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("warning: %w", warn))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("error: %w", err))
	}
}
