package engine

import (
	"fmt"
	"strings"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
)

// Placeholder stands in for a unit that failed to decompile, so one bad
// class never fails a whole archive.
func Placeholder(qualifiedName string, id ID, cause error) Unit {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	// Keep the comment well-formed whatever the engine said.
	msg = strings.ReplaceAll(msg, "*/", "* /")

	var b strings.Builder
	b.WriteString("/*\n")
	fmt.Fprintf(&b, " * Decompilation of %s failed (%s).\n", qualifiedName, id)
	for _, line := range strings.Split(msg, "\n") {
		b.WriteString(" * ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(" */\n")
	return Unit{QualifiedName: qualifiedName, Source: b.String()}
}

// UnitName resolves the dotted name for data. The name read from data wins
// over hint; hint is only used when data has no readable name. ok is false
// when neither gives a name.
func UnitName(data []byte, hint string) (name string, fromBytes bool, ok bool) {
	internal, err := classfile.ReadName(data)
	if err == nil {
		return classfile.InternalToQualified(internal), true, true
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint, false, true
	}
	return "", false, false
}
