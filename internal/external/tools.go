// Package external runs decompilers that ship as standalone programs. Each
// tool is described declaratively; the adapter stages input in a scratch
// workspace, runs the tool and recovers its output from the filesystem.
package external

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/config"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
)

// Launcher says how a tool file is started.
type Launcher string

const (
	LauncherJavaJar Launcher = "java-jar"
	LauncherNative  Launcher = "native"
)

// OutputKind says where a tool leaves its results in the output directory.
type OutputKind string

const (
	// OutputSources tools write .java files.
	OutputSources OutputKind = "sources"
	// OutputArchive tools may also write jars/zips holding .java entries.
	OutputArchive OutputKind = "archive"
)

const (
	PlaceholderInput  = "{input}"
	PlaceholderOutput = "{output}"
)

// ToolSpec describes one external tool.
type ToolSpec struct {
	ID       engine.ID
	Aliases  []engine.ID
	File     string
	Launcher Launcher
	Args     []string
	Output   OutputKind
}

// DefaultTools returns the built-in tool table.
func DefaultTools() []ToolSpec {
	return []ToolSpec{
		{
			ID:       "fernflower",
			File:     "fernflower.jar",
			Launcher: LauncherJavaJar,
			Args:     []string{PlaceholderInput, PlaceholderOutput},
			Output:   OutputArchive,
		},
		{
			ID:       "forgeflower",
			File:     "forgeflower.jar",
			Launcher: LauncherJavaJar,
			Args:     []string{PlaceholderInput, PlaceholderOutput},
			Output:   OutputArchive,
		},
		{
			ID:       "jdcore",
			Aliases:  []engine.ID{"jd"},
			File:     "jd-cli.jar",
			Launcher: LauncherJavaJar,
			Args:     []string{PlaceholderInput, "-od", PlaceholderOutput},
			Output:   OutputSources,
		},
		{
			ID:       "procyon-decompiler",
			File:     "procyon-decompiler.jar",
			Launcher: LauncherJavaJar,
			Args:     []string{PlaceholderInput, "-o", PlaceholderOutput},
			Output:   OutputSources,
		},
		{
			ID:       "jad",
			File:     "jad",
			Launcher: LauncherNative,
			Args:     []string{"-o", "-r", "-s", "java", "-d", PlaceholderOutput, PlaceholderInput},
			Output:   OutputSources,
		},
	}
}

// Table indexes tool specs by id and alias.
type Table struct {
	specs map[engine.ID]ToolSpec
	byKey map[engine.ID]engine.ID
}

// NewTable builds the default table and applies overrides from
// configuration. An override with a known id replaces that tool.
func NewTable(overrides []config.ToolConfig) (*Table, error) {
	t := &Table{specs: map[engine.ID]ToolSpec{}, byKey: map[engine.ID]engine.ID{}}
	for _, spec := range DefaultTools() {
		if err := t.add(spec); err != nil {
			return nil, err
		}
	}
	for _, tc := range overrides {
		spec, err := specFromConfig(tc)
		if err != nil {
			return nil, err
		}
		if err := t.add(spec); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func specFromConfig(tc config.ToolConfig) (ToolSpec, error) {
	spec := ToolSpec{
		ID:       engine.Normalize(tc.ID),
		File:     strings.TrimSpace(tc.File),
		Launcher: Launcher(strings.ToLower(strings.TrimSpace(tc.Launcher))),
		Args:     tc.Args,
		Output:   OutputKind(strings.ToLower(strings.TrimSpace(tc.Output))),
	}
	for _, alias := range tc.Aliases {
		spec.Aliases = append(spec.Aliases, engine.Normalize(alias))
	}
	if spec.Launcher == "" {
		spec.Launcher = LauncherJavaJar
	}
	if spec.Output == "" {
		spec.Output = OutputSources
	}
	if len(spec.Args) == 0 {
		spec.Args = []string{PlaceholderInput, PlaceholderOutput}
	}
	return spec, spec.validate()
}

func (s ToolSpec) validate() error {
	if s.ID == "" {
		return fmt.Errorf("tool id is required")
	}
	switch s.ID {
	case engine.CFR, engine.Procyon, engine.JADX, engine.Outline:
		return fmt.Errorf("tool id %q is reserved for an embedded engine", s.ID)
	}
	if s.File == "" || strings.ContainsAny(s.File, `/\`) {
		return fmt.Errorf("tool %s: file must be a plain file name, got %q", s.ID, s.File)
	}
	switch s.Launcher {
	case LauncherJavaJar, LauncherNative:
	default:
		return fmt.Errorf("tool %s: unknown launcher %q", s.ID, s.Launcher)
	}
	switch s.Output {
	case OutputSources, OutputArchive:
	default:
		return fmt.Errorf("tool %s: unknown output kind %q", s.ID, s.Output)
	}
	var hasInput, hasOutput bool
	for _, arg := range s.Args {
		hasInput = hasInput || strings.Contains(arg, PlaceholderInput)
		hasOutput = hasOutput || strings.Contains(arg, PlaceholderOutput)
	}
	if !hasInput || !hasOutput {
		return fmt.Errorf("tool %s: args must reference %s and %s", s.ID, PlaceholderInput, PlaceholderOutput)
	}
	return nil
}

func (t *Table) add(spec ToolSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	if old, ok := t.specs[spec.ID]; ok {
		for _, alias := range old.Aliases {
			delete(t.byKey, alias)
		}
	}
	t.specs[spec.ID] = spec
	t.byKey[spec.ID] = spec.ID
	for _, alias := range spec.Aliases {
		if owner, ok := t.byKey[alias]; ok && owner != spec.ID {
			return fmt.Errorf("tool alias %q of %s already names %s", alias, spec.ID, owner)
		}
		t.byKey[alias] = spec.ID
	}
	return nil
}

// Lookup finds a tool by id or alias. id must already be normalized.
func (t *Table) Lookup(id engine.ID) (ToolSpec, bool) {
	canonical, ok := t.byKey[id]
	if !ok {
		return ToolSpec{}, false
	}
	return t.specs[canonical], true
}

// IDs returns every tool id and alias, sorted.
func (t *Table) IDs() []engine.ID {
	ids := make([]engine.ID, 0, len(t.byKey))
	for id := range t.byKey {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// expandArgs substitutes the input and output placeholders.
func (s ToolSpec) expandArgs(input, output string) []string {
	r := strings.NewReplacer(PlaceholderInput, input, PlaceholderOutput, output)
	out := make([]string, len(s.Args))
	for i, arg := range s.Args {
		out[i] = r.Replace(arg)
	}
	return out
}
