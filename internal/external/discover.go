package external

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
)

// discover collects the sources a tool left under dir, in lexical order of
// their relative paths. Archive tools may leave jars or zips of sources;
// their entries are read too.
func discover(dir string, kind OutputKind) ([]engine.Unit, error) {
	var units []engine.Unit
	var archives []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		switch ext := strings.ToLower(filepath.Ext(p)); {
		case ext == ".java":
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			units = append(units, engine.Unit{
				QualifiedName: archive.QualifiedFromSource(filepath.ToSlash(rel)),
				Source:        string(data),
			})
		case kind == OutputArchive && (ext == ".jar" || ext == ".zip"):
			archives = append(archives, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range archives {
		err := archive.ReadSources(p, func(u engine.Unit) error {
			units = append(units, u)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(units, func(i, j int) bool { return units[i].QualifiedName < units[j].QualifiedName })
	return units, nil
}
