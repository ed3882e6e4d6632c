package outline

import (
	"fmt"
	"strings"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/classfile"
)

const (
	indent   = "    "
	bodyStub = "{ /* compiled code */ }"
)

// Render outlines the declarations of one class. Method bodies are not
// reconstructed.
func Render(data []byte) (string, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if pkg := cf.PackageName(); pkg != "" {
		fmt.Fprintf(&b, "package %s;\n\n", pkg)
	}
	fmt.Fprintf(&b, "/* Outline of %s (class file version %d.%d) */\n", cf.QualifiedName(), cf.MajorVersion, cf.MinorVersion)
	b.WriteString(classHeader(cf))
	b.WriteString(" {\n")

	wrote := false
	for _, f := range cf.Fields {
		if f.Is(classfile.AccSynthetic) {
			continue
		}
		line, err := fieldDecl(cf, f)
		if err != nil {
			return "", err
		}
		if !wrote {
			b.WriteString("\n")
			wrote = true
		}
		b.WriteString(indent + line + "\n")
	}

	for _, m := range cf.Methods {
		if m.Is(classfile.AccSynthetic) || m.Is(classfile.AccBridge) {
			continue
		}
		line, err := methodDecl(cf, m)
		if err != nil {
			return "", err
		}
		b.WriteString("\n" + indent + line + "\n")
	}

	b.WriteString("}\n")
	return b.String(), nil
}

func classHeader(cf *classfile.ClassFile) string {
	var mods []string
	if cf.Is(classfile.AccPublic) {
		mods = append(mods, "public")
	}

	kind := "class"
	switch {
	case cf.Is(classfile.AccAnnotation):
		kind = "@interface"
	case cf.Is(classfile.AccInterface):
		kind = "interface"
	case cf.Is(classfile.AccEnum):
		kind = "enum"
	default:
		if cf.Is(classfile.AccAbstract) {
			mods = append(mods, "abstract")
		}
		if cf.Is(classfile.AccFinal) {
			mods = append(mods, "final")
		}
	}
	mods = append(mods, kind, cf.SimpleName())
	header := strings.Join(mods, " ")

	interfaces := make([]string, 0, len(cf.Interfaces))
	for _, iface := range cf.Interfaces {
		if kind == "@interface" && iface == "java/lang/annotation/Annotation" {
			continue
		}
		interfaces = append(interfaces, classfile.SourceTypeName(iface))
	}

	switch kind {
	case "class":
		if cf.SuperClass != "" && cf.SuperClass != "java/lang/Object" {
			header += " extends " + classfile.SourceTypeName(cf.SuperClass)
		}
		if len(interfaces) > 0 {
			header += " implements " + strings.Join(interfaces, ", ")
		}
	case "interface", "@interface":
		if len(interfaces) > 0 {
			header += " extends " + strings.Join(interfaces, ", ")
		}
	case "enum":
		if len(interfaces) > 0 {
			header += " implements " + strings.Join(interfaces, ", ")
		}
	}
	return header
}

func visibility(flags uint16) []string {
	switch {
	case flags&classfile.AccPublic != 0:
		return []string{"public"}
	case flags&classfile.AccProtected != 0:
		return []string{"protected"}
	case flags&classfile.AccPrivate != 0:
		return []string{"private"}
	}
	return nil
}

func fieldDecl(cf *classfile.ClassFile, f classfile.Member) (string, error) {
	typ, err := classfile.FieldType(f.Descriptor)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", f.Name, err)
	}
	mods := visibility(f.AccessFlags)
	if !cf.Is(classfile.AccInterface) {
		if f.Is(classfile.AccStatic) {
			mods = append(mods, "static")
		}
		if f.Is(classfile.AccFinal) {
			mods = append(mods, "final")
		}
	}
	if f.Is(classfile.AccVolatile) {
		mods = append(mods, "volatile")
	}
	if f.Is(classfile.AccTransient) {
		mods = append(mods, "transient")
	}
	mods = append(mods, typ, f.Name+";")
	return strings.Join(mods, " "), nil
}

func methodDecl(cf *classfile.ClassFile, m classfile.Member) (string, error) {
	if m.Name == "<clinit>" {
		return "static " + bodyStub, nil
	}

	params, ret, err := classfile.MethodType(m.Descriptor)
	if err != nil {
		return "", fmt.Errorf("method %s: %w", m.Name, err)
	}
	if m.Is(classfile.AccVarargs) && len(params) > 0 {
		last := params[len(params)-1]
		params[len(params)-1] = strings.TrimSuffix(last, "[]") + "..."
	}
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = fmt.Sprintf("%s arg%d", p, i)
	}

	iface := cf.Is(classfile.AccInterface)
	mods := visibility(m.AccessFlags)
	if iface && len(mods) == 1 && mods[0] == "public" {
		mods = nil
	}
	if m.Is(classfile.AccStatic) {
		mods = append(mods, "static")
	}
	abstract := m.Is(classfile.AccAbstract)
	switch {
	case abstract && !iface:
		mods = append(mods, "abstract")
	case iface && !abstract && !m.Is(classfile.AccStatic) && !m.Is(classfile.AccPrivate):
		mods = append(mods, "default")
	}
	if m.Is(classfile.AccFinal) {
		mods = append(mods, "final")
	}
	if m.Is(classfile.AccSynchronized) {
		mods = append(mods, "synchronized")
	}
	native := m.Is(classfile.AccNative)
	if native {
		mods = append(mods, "native")
	}

	if m.Name == "<init>" {
		mods = append(mods, cf.SimpleName())
	} else {
		mods = append(mods, ret, m.Name)
	}
	decl := strings.Join(mods, " ") + "(" + strings.Join(args, ", ") + ")"
	if abstract || native {
		return decl + ";", nil
	}
	return decl + " " + bodyStub, nil
}
