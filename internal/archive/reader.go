package archive

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
)

const (
	classSuffix  = ".class"
	sourceSuffix = ".java"
)

// ClassEntry is one .class entry of an input archive.
type ClassEntry struct {
	Path          string
	QualifiedName string

	file *zip.File
}

// ReadAll returns the entry's bytes. The Reader it came from must still be
// open.
func (e ClassEntry) ReadAll() ([]byte, error) {
	if e.file == nil {
		return nil, fmt.Errorf("entry %s is not backed by an open archive", e.Path)
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Reader gives access to the class entries of a jar or zip.
type Reader struct {
	rc      *zip.ReadCloser
	classes []ClassEntry
}

// OpenReader opens the archive at p and indexes its class entries.
func OpenReader(p string) (*Reader, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	r := &Reader{rc: rc}
	for _, f := range rc.File {
		name, ok := qualifiedFromEntry(f.Name)
		if !ok || f.FileInfo().IsDir() {
			continue
		}
		r.classes = append(r.classes, ClassEntry{Path: f.Name, QualifiedName: name, file: f})
	}
	return r, nil
}

// Classes returns the class entries in archive order.
func (r *Reader) Classes() []ClassEntry {
	return r.classes
}

// Select returns the class entries matched by target.
func (r *Reader) Select(target string) []ClassEntry {
	var out []ClassEntry
	for _, c := range r.classes {
		if MatchTarget(c.QualifiedName, target) {
			out = append(out, c)
		}
	}
	return out
}

func (r *Reader) Close() error {
	return r.rc.Close()
}

// ClassEntries lists the dotted names of the class entries in the archive
// at p.
func ClassEntries(p string) ([]string, error) {
	r, err := OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names := make([]string, 0, len(r.classes))
	for _, c := range r.classes {
		names = append(names, c.QualifiedName)
	}
	return names, nil
}

// MatchTarget reports whether a unit named qualifiedName is selected by
// target. Matching is exact; an empty target selects everything.
func MatchTarget(qualifiedName, target string) bool {
	target = strings.TrimSpace(target)
	return target == "" || qualifiedName == target
}

// ReadSources calls fn for every .java entry in the archive at p, in
// lexical entry order. Units are named by their entry path.
func ReadSources(p string, fn func(engine.Unit) error) error {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer rc.Close()

	files := make([]*zip.File, 0, len(rc.File))
	for _, f := range rc.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(f.Name, sourceSuffix) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	for _, f := range files {
		src, err := readFile(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		if err := fn(engine.Unit{QualifiedName: QualifiedFromSource(f.Name), Source: src}); err != nil {
			return err
		}
	}
	return nil
}

func readFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	return string(b), err
}

func qualifiedFromEntry(name string) (string, bool) {
	if !strings.HasSuffix(name, classSuffix) {
		return "", false
	}
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	// Multi-release and module descriptors are not compilation units.
	if strings.HasPrefix(clean, "META-INF/") || path.Base(clean) == "module-info.class" {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(clean, classSuffix), "/", "."), true
}

// QualifiedFromSource maps a/b/C.java to a.b.C.
func QualifiedFromSource(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	return strings.ReplaceAll(strings.TrimSuffix(rel, sourceSuffix), "/", ".")
}
