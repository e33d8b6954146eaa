// Package convert orchestrates the conversion of level directories between
// the binary container form used by the engine and the editable markup
// form.
//
// Every file of a loaded level moves through an explicit state machine:
// Unloaded, BinaryLoaded, MarkupSynced, Dirty, Saved. Which form of a file
// holds the current truth is decided by Authority alone; no other code
// compares timestamps.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/duniatools/fcbfile"
	"github.com/duniatools/fcbfile/classes"
	"github.com/duniatools/fcbfile/errors"
	"github.com/duniatools/fcbfile/fcb"
	"github.com/duniatools/fcbfile/fcbx"
	"github.com/duniatools/fcbfile/markup"
)

// markupSuffix is appended to a container path to name its markup form.
const markupSuffix = ".converted.xml"

// FileState tracks how far a single file has moved through the conversion
// pipeline.
type FileState int

const (
	// Unloaded means the file is known by path only.
	Unloaded FileState = iota

	// BinaryLoaded means the container bytes have been decoded to a tree.
	BinaryLoaded

	// MarkupSynced means the markup form has been derived from the tree.
	MarkupSynced

	// Dirty means the in-memory tree has edits the binary form lacks.
	Dirty

	// Saved means the binary form has been rewritten from the tree.
	Saved
)

func (s FileState) String() string {
	switch s {
	case BinaryLoaded:
		return "binary-loaded"
	case MarkupSynced:
		return "markup-synced"
	case Dirty:
		return "dirty"
	case Saved:
		return "saved"
	}
	return "unloaded"
}

// Form names one of the places the content of a file can live.
type Form int

const (
	// FormBinary is the engine container on disk.
	FormBinary Form = iota

	// FormMarkup is the editable markup file on disk.
	FormMarkup

	// FormMemory is the unsaved in-memory tree.
	FormMemory
)

func (f Form) String() string {
	switch f {
	case FormMarkup:
		return "markup"
	case FormMemory:
		return "memory"
	}
	return "binary"
}

// FileStatus is a snapshot of one file's conversion state.
type FileStatus struct {
	Name       string
	State      FileState
	BinaryPath string
	MarkupPath string

	// Modification times of the two on-disk forms.
	BinaryTime time.Time
	MarkupTime time.Time

	// MarkupExists reports whether the markup form is on disk at all, and
	// MarkupEdited whether its content differs from the last synced form.
	MarkupExists bool
	MarkupEdited bool

	// Content digests of the two forms as of the last sync.
	BinaryDigest [32]byte
	MarkupDigest [32]byte
}

// Authority decides which form of a file holds the current truth. Unsaved
// in-memory edits always win; otherwise an out-of-tool edit to the markup
// form wins over the binary form only when the markup content actually
// changed and is the newer of the two files.
func Authority(s FileStatus) Form {
	if s.State == Dirty {
		return FormMemory
	}
	if s.MarkupExists && s.MarkupEdited && s.MarkupTime.After(s.BinaryTime) {
		return FormMarkup
	}
	return FormBinary
}

////////////////////////////////////////////////////////////////

// Orchestrator loads a level directory, tracks the conversion state of
// each of its files, and writes changed files back to disk.
type Orchestrator struct {
	// Classes resolves names, kinds, and reference roles. If nil, the
	// builtin registry is used.
	Classes *classes.Registry

	// Logger receives progress and warnings. The zero Logger discards
	// them.
	Logger zerolog.Logger

	// Workers bounds how many files load in parallel. Zero or less means
	// one worker per processor.
	Workers int

	mu      sync.Mutex
	level   *fcbfile.Level
	entries map[string]*entry
}

type entry struct {
	name       string
	binaryPath string
	markupPath string
	file       *fcbfile.ResourceFile
	state      FileState

	binTime    time.Time
	markTime   time.Time
	markExists bool
	markEdited bool
	binDigest  [32]byte
	markDigest [32]byte
}

func (e *entry) status() FileStatus {
	return FileStatus{
		Name:         e.name,
		State:        e.state,
		BinaryPath:   e.binaryPath,
		MarkupPath:   e.markupPath,
		BinaryTime:   e.binTime,
		MarkupTime:   e.markTime,
		MarkupExists: e.markExists,
		MarkupEdited: e.markEdited,
		BinaryDigest: e.binDigest,
		MarkupDigest: e.markDigest,
	}
}

// fileName derives the level-internal name of a container path.
func fileName(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".fcb") {
		base = base[:len(base)-len(".fcb")]
	}
	return base
}

// Level returns the currently loaded level, or nil.
func (o *Orchestrator) Level() *fcbfile.Level {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

// Files returns the names of the loaded files, sorted.
func (o *Orchestrator) Files() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.entries))
	for name := range o.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State returns the conversion state of the named file.
func (o *Orchestrator) State(name string) FileState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[name]; ok {
		return e.state
	}
	return Unloaded
}

// Status returns a snapshot of the named file's conversion state.
func (o *Orchestrator) Status(name string) (FileStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[name]; ok {
		return e.status(), true
	}
	return FileStatus{}, false
}

// MarkDirty records that the in-memory tree of the named file has been
// edited and needs saving.
func (o *Orchestrator) MarkDirty(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[name]
	if !ok {
		return fmt.Errorf("no loaded file %q", name)
	}
	e.state = Dirty
	return nil
}

////////////////////////////////////////////////////////////////

// LoadLevel loads every container file of a level: the table files in
// containerDir plus the sector data files in sectorsDir. Files load in
// parallel; a file that fails to decode is skipped and reported in warn
// while the rest of the level loads. Cancelling ctx abandons the load
// between files.
//
// If a file's markup form on disk carries edits made outside the tool and
// is newer than its binary form, the markup form is adopted and the file
// starts out Dirty.
func (o *Orchestrator) LoadLevel(ctx context.Context, containerDir, sectorsDir string) (lvl *fcbfile.Level, warn, err error) {
	if o.Classes == nil {
		o.Classes = classes.Builtin()
	}

	paths, err := levelFiles(containerDir, sectorsDir)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no container files in %s", containerDir)
	}

	type result struct {
		path string
		e    *entry
		err  error
	}

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan string)
	results := make(chan result)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				e, err := o.loadOne(path)
				if err != nil {
					err = fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				results <- result{path, e, err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]result, len(paths))
	for r := range results {
		collected[r.path] = r
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	lvl = fcbfile.NewLevel(o.Classes)
	entries := make(map[string]*entry, len(paths))
	var warns errors.Errors
	for _, path := range paths {
		r, ok := collected[path]
		if !ok {
			continue
		}
		if r.err != nil {
			o.Logger.Warn().Err(r.err).Msg("file skipped")
			warns = append(warns, r.err)
			continue
		}
		aw, err := lvl.AddFile(r.e.file)
		if err != nil {
			warns = append(warns, fmt.Errorf("%s: %w", r.e.name, err))
			continue
		}
		if aw != nil {
			warns = append(warns, aw)
		}
		entries[r.e.name] = r.e
		o.Logger.Debug().Str("file", r.e.name).Stringer("state", r.e.state).Msg("file loaded")
	}

	o.mu.Lock()
	o.level = lvl
	o.entries = entries
	o.mu.Unlock()
	return lvl, warns.Return(), nil
}

// loadOne decodes a single container file and derives its markup form.
func (o *Orchestrator) loadOne(path string) (*entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, warn, err := fcb.Decoder{Classes: o.Classes, Logger: o.Logger}.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if warn != nil {
		o.Logger.Warn().Str("file", filepath.Base(path)).Err(warn).Msg("container oddities")
	}
	f.Name = fileName(path)

	e := &entry{
		name:       f.Name,
		binaryPath: path,
		markupPath: path + markupSuffix,
		file:       f,
		state:      BinaryLoaded,
		binTime:    st.ModTime(),
		binDigest:  blake2b.Sum256(data),
	}

	mark, err := o.renderMarkup(f)
	if err != nil {
		return nil, err
	}
	e.markDigest = blake2b.Sum256(mark)
	e.state = MarkupSynced

	if mst, err := os.Stat(e.markupPath); err == nil {
		onDisk, err := os.ReadFile(e.markupPath)
		if err != nil {
			return nil, err
		}
		e.markExists = true
		e.markTime = mst.ModTime()
		e.markEdited = blake2b.Sum256(onDisk) != e.markDigest
		if Authority(e.status()) == FormMarkup {
			if err := o.adoptMarkup(e, onDisk); err != nil {
				return nil, fmt.Errorf("markup form: %w", err)
			}
			o.Logger.Info().Str("file", e.name).Msg("markup form is newer; adopting outside edits")
		}
	}
	return e, nil
}

// adoptMarkup replaces the entry's tree with the decoded markup bytes and
// marks the binary form stale.
func (o *Orchestrator) adoptMarkup(e *entry, data []byte) error {
	doc := new(markup.Document)
	if _, err := doc.ReadFrom(bytes.NewReader(data)); err != nil {
		return err
	}
	f, warn, err := fcbx.Decoder{Classes: o.Classes}.Decode(doc)
	if err != nil {
		return err
	}
	if warn != nil {
		o.Logger.Warn().Str("file", e.name).Err(warn).Msg("markup oddities")
	}
	e.file.Roots = f.Roots
	e.file.Compressed = f.Compressed
	e.markDigest = blake2b.Sum256(data)
	e.markEdited = false
	e.state = Dirty
	return nil
}

func (o *Orchestrator) renderMarkup(f *fcbfile.ResourceFile) ([]byte, error) {
	doc, err := fcbx.Encoder{Classes: o.Classes}.Encode(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

////////////////////////////////////////////////////////////////

// SaveLevel writes every dirty file back to disk, both forms. Dangling
// references are reported to the logger but never block a save. A file
// that fails to save keeps its Dirty state; the rest still save.
func (o *Orchestrator) SaveLevel(ctx context.Context) error {
	o.mu.Lock()
	lvl := o.level
	names := make([]string, 0, len(o.entries))
	for name := range o.entries {
		names = append(names, name)
	}
	o.mu.Unlock()
	sort.Strings(names)

	if lvl != nil {
		for _, ref := range lvl.FindDangling() {
			o.Logger.Warn().
				Str("file", ref.File).
				Str("node", ref.Node.String()).
				Str("field", fcbfile.FormatHash(ref.Field)).
				Uint64("target", ref.Target).
				Msg("dangling reference")
		}
	}

	var errs errors.Errors
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := o.SaveFile(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs.Return()
}

// SaveFile writes the named file back to disk if it is dirty. Both forms
// are serialized before anything is written, and each form is replaced
// atomically, so a failure leaves the previous on-disk state and the Dirty
// state intact.
func (o *Orchestrator) SaveFile(name string) error {
	o.mu.Lock()
	e, ok := o.entries[name]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no loaded file %q", name)
	}
	if e.state != Dirty {
		return nil
	}

	var bin bytes.Buffer
	warn, err := fcb.Encoder{Classes: o.Classes}.Encode(&bin, e.file)
	if err != nil {
		return err
	}
	if warn != nil {
		o.Logger.Warn().Str("file", name).Err(warn).Msg("encode oddities")
	}
	mark, err := o.renderMarkup(e.file)
	if err != nil {
		return err
	}

	if err := writeAtomic(e.binaryPath, bin.Bytes()); err != nil {
		return err
	}
	if err := writeAtomic(e.markupPath, mark); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	e.binDigest = blake2b.Sum256(bin.Bytes())
	e.markDigest = blake2b.Sum256(mark)
	if st, err := os.Stat(e.binaryPath); err == nil {
		e.binTime = st.ModTime()
	}
	if st, err := os.Stat(e.markupPath); err == nil {
		e.markTime = st.ModTime()
	}
	e.markExists = true
	e.markEdited = false
	e.state = Saved
	o.Logger.Info().Str("file", name).Msg("file saved")
	return nil
}

// SyncMarkup writes the markup form of the named file to disk without
// touching the binary form.
func (o *Orchestrator) SyncMarkup(name string) error {
	o.mu.Lock()
	e, ok := o.entries[name]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no loaded file %q", name)
	}

	mark, err := o.renderMarkup(e.file)
	if err != nil {
		return err
	}
	if err := writeAtomic(e.markupPath, mark); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	e.markDigest = blake2b.Sum256(mark)
	if st, err := os.Stat(e.markupPath); err == nil {
		e.markTime = st.ModTime()
	}
	e.markExists = true
	e.markEdited = false
	return nil
}

// ReloadMarkup adopts the on-disk markup form of the named file, replacing
// the in-memory tree and marking the binary form stale.
func (o *Orchestrator) ReloadMarkup(name string) error {
	o.mu.Lock()
	e, ok := o.entries[name]
	lvl := o.level
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no loaded file %q", name)
	}

	data, err := os.ReadFile(e.markupPath)
	if err != nil {
		return err
	}
	if err := o.adoptMarkup(e, data); err != nil {
		return err
	}
	if st, err := os.Stat(e.markupPath); err == nil {
		e.markTime = st.ModTime()
	}
	e.markExists = true
	if lvl != nil {
		if warn := lvl.Reindex(); warn != nil {
			o.Logger.Warn().Str("file", name).Err(warn).Msg("reindex oddities")
		}
	}
	return nil
}

// CheckMarkup refreshes the out-of-tool edit flag for the file whose
// markup form lives at path, and returns its status. Watcher consumers
// call this on change events and then decide with Authority.
func (o *Orchestrator) CheckMarkup(path string) (FileStatus, bool) {
	o.mu.Lock()
	var e *entry
	for _, cand := range o.entries {
		if cand.markupPath == path {
			e = cand
			break
		}
	}
	o.mu.Unlock()
	if e == nil {
		return FileStatus{}, false
	}

	st, err := os.Stat(path)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		e.markExists = false
		e.markEdited = false
		return e.status(), true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return e.status(), true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	e.markExists = true
	e.markTime = st.ModTime()
	e.markEdited = blake2b.Sum256(data) != e.markDigest
	return e.status(), true
}

// writeAtomic replaces path with data by writing a sibling temp file and
// renaming it into place.
func writeAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
