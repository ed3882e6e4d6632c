// Package classfiletest builds small, structurally valid class files and
// jars for tests. The classes have no Code attributes and would not pass
// JVM verification.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"

	"github.com/klauspost/compress/zip"
)

type member struct {
	access     uint16
	name, desc string
}

// Builder assembles a class file.
type Builder struct {
	name       string
	super      string
	access     uint16
	major      uint16
	interfaces []string
	fields     []member
	methods    []member

	pool    bytes.Buffer
	count   uint16
	utf8s   map[string]uint16
	classes map[string]uint16
}

// New starts a public class extending java/lang/Object.
func New(internalName string) *Builder {
	return &Builder{
		name:    internalName,
		super:   "java/lang/Object",
		access:  0x0021,
		major:   52,
		utf8s:   map[string]uint16{},
		classes: map[string]uint16{},
	}
}

func (b *Builder) Super(internalName string) *Builder {
	b.super = internalName
	return b
}

func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

func (b *Builder) Interface(internalName string) *Builder {
	b.interfaces = append(b.interfaces, internalName)
	return b
}

func (b *Builder) Field(access uint16, name, desc string) *Builder {
	b.fields = append(b.fields, member{access, name, desc})
	return b
}

func (b *Builder) Method(access uint16, name, desc string) *Builder {
	b.methods = append(b.methods, member{access, name, desc})
	return b
}

func (b *Builder) utf8(s string) uint16 {
	if idx, ok := b.utf8s[s]; ok {
		return idx
	}
	b.count++
	b.pool.WriteByte(1)
	_ = binary.Write(&b.pool, binary.BigEndian, uint16(len(s)))
	b.pool.WriteString(s)
	b.utf8s[s] = b.count
	return b.count
}

func (b *Builder) class(name string) uint16 {
	if idx, ok := b.classes[name]; ok {
		return idx
	}
	nameIdx := b.utf8(name)
	b.count++
	b.pool.WriteByte(7)
	_ = binary.Write(&b.pool, binary.BigEndian, nameIdx)
	b.classes[name] = b.count
	return b.count
}

// Bytes encodes the class.
func (b *Builder) Bytes() []byte {
	b.pool.Reset()
	b.count = 0
	b.utf8s = map[string]uint16{}
	b.classes = map[string]uint16{}

	thisIdx := b.class(b.name)
	var superIdx uint16
	if b.super != "" {
		superIdx = b.class(b.super)
	}
	ifaceIdx := make([]uint16, 0, len(b.interfaces))
	for _, iface := range b.interfaces {
		ifaceIdx = append(ifaceIdx, b.class(iface))
	}
	encodeMembers := func(members []member) []byte {
		var out bytes.Buffer
		_ = binary.Write(&out, binary.BigEndian, uint16(len(members)))
		for _, m := range members {
			_ = binary.Write(&out, binary.BigEndian, m.access)
			_ = binary.Write(&out, binary.BigEndian, b.utf8(m.name))
			_ = binary.Write(&out, binary.BigEndian, b.utf8(m.desc))
			_ = binary.Write(&out, binary.BigEndian, uint16(0))
		}
		return out.Bytes()
	}
	fields := encodeMembers(b.fields)
	methods := encodeMembers(b.methods)

	var out bytes.Buffer
	_ = binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	_ = binary.Write(&out, binary.BigEndian, uint16(0))
	_ = binary.Write(&out, binary.BigEndian, b.major)
	_ = binary.Write(&out, binary.BigEndian, b.count+1)
	out.Write(b.pool.Bytes())
	_ = binary.Write(&out, binary.BigEndian, b.access)
	_ = binary.Write(&out, binary.BigEndian, thisIdx)
	_ = binary.Write(&out, binary.BigEndian, superIdx)
	_ = binary.Write(&out, binary.BigEndian, uint16(len(ifaceIdx)))
	for _, idx := range ifaceIdx {
		_ = binary.Write(&out, binary.BigEndian, idx)
	}
	out.Write(fields)
	out.Write(methods)
	_ = binary.Write(&out, binary.BigEndian, uint16(0))
	return out.Bytes()
}

// Simple returns a class with a default constructor and one method.
func Simple(internalName string) []byte {
	return New(internalName).
		Field(0x0002, "value", "I").
		Method(0x0001, "<init>", "()V").
		Method(0x0001, "run", "(Ljava/lang/String;)V").
		Bytes()
}

// WriteJar writes entries (path -> content) into a jar at path, in sorted
// entry order.
func WriteJar(path string, entries map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write(entries[name]); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}
