// Package classfile reads the structural parts of a Java class file: the
// constant pool, the class header and member declarations. Code and other
// attributes are skipped, never interpreted.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const Magic = 0xCAFEBABE

// Access flags shared by classes, fields and methods.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccModule       = 0x8000
)

const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

var (
	ErrNotClassFile = errors.New("not a class file")
	ErrTruncated    = errors.New("truncated class file")
	ErrMalformed    = errors.New("malformed class file")
)

// ClassFile is the declaration-level view of a compiled class.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string
	Interfaces   []string
	Fields       []Member
	Methods      []Member
}

// Member is a field or method declaration.
type Member struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

type poolEntry struct {
	tag   byte
	utf8  string
	index uint16
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u1() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, ErrTruncated
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return ErrTruncated
	}
	r.pos += n
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Parse decodes data into a ClassFile.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}
	cf, pool, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := className(pool, idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	if cf.Fields, err = parseMembers(r, pool); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if cf.Methods, err = parseMembers(r, pool); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if err := skipAttributes(r); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	return cf, nil
}

// ReadName returns the internal name (a/b/C) of the class in data without
// decoding members.
func ReadName(data []byte) (string, error) {
	cf, _, err := parseHeader(&reader{data: data})
	if err != nil {
		return "", err
	}
	return cf.ThisClass, nil
}

func parseHeader(r *reader) (*ClassFile, []poolEntry, error) {
	m, err := r.u4()
	if err != nil {
		return nil, nil, ErrNotClassFile
	}
	if m != Magic {
		return nil, nil, ErrNotClassFile
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.u2(); err != nil {
		return nil, nil, err
	}
	if cf.MajorVersion, err = r.u2(); err != nil {
		return nil, nil, err
	}

	pool, err := parsePool(r)
	if err != nil {
		return nil, nil, err
	}

	if cf.AccessFlags, err = r.u2(); err != nil {
		return nil, nil, err
	}
	thisIdx, err := r.u2()
	if err != nil {
		return nil, nil, err
	}
	if cf.ThisClass, err = className(pool, thisIdx); err != nil {
		return nil, nil, fmt.Errorf("this_class: %w", err)
	}
	superIdx, err := r.u2()
	if err != nil {
		return nil, nil, err
	}
	if superIdx != 0 {
		if cf.SuperClass, err = className(pool, superIdx); err != nil {
			return nil, nil, fmt.Errorf("super_class: %w", err)
		}
	}
	return cf, pool, nil
}

func parsePool(r *reader) ([]poolEntry, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty constant pool", ErrMalformed)
	}
	pool := make([]poolEntry, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		entry := poolEntry{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			entry.utf8 = decodeModifiedUTF8(b)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			if entry.index, err = r.u2(); err != nil {
				return nil, err
			}
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			if err := r.skip(4); err != nil {
				return nil, err
			}
		case tagMethodHandle:
			if err := r.skip(3); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if err := r.skip(8); err != nil {
				return nil, err
			}
			pool[i] = entry
			// 8-byte constants take two slots.
			i++
			continue
		default:
			return nil, fmt.Errorf("%w: unknown constant pool tag %d at index %d", ErrMalformed, tag, i)
		}
		pool[i] = entry
	}
	return pool, nil
}

func parseMembers(r *reader, pool []poolEntry) ([]Member, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, count)
	for i := 0; i < int(count); i++ {
		var m Member
		if m.AccessFlags, err = r.u2(); err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		if m.Name, err = utf8At(pool, nameIdx); err != nil {
			return nil, err
		}
		if m.Descriptor, err = utf8At(pool, descIdx); err != nil {
			return nil, err
		}
		if err := skipAttributes(r); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func skipAttributes(r *reader) error {
	count, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if _, err := r.u2(); err != nil {
			return err
		}
		n, err := r.u4()
		if err != nil {
			return err
		}
		if err := r.skip(int(n)); err != nil {
			return err
		}
	}
	return nil
}

func utf8At(pool []poolEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) || pool[idx].tag != tagUtf8 {
		return "", fmt.Errorf("%w: constant %d is not a Utf8 entry", ErrMalformed, idx)
	}
	return pool[idx].utf8, nil
}

func className(pool []poolEntry, idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(pool) || pool[idx].tag != tagClass {
		return "", fmt.Errorf("%w: constant %d is not a Class entry", ErrMalformed, idx)
	}
	return utf8At(pool, pool[idx].index)
}

// decodeModifiedUTF8 maps the two-byte NUL of modified UTF-8 back to NUL.
// Supplementary characters keep their surrogate-pair encoding.
func decodeModifiedUTF8(b []byte) string {
	if !strings.Contains(string(b), "\xc0\x80") {
		return string(b)
	}
	return strings.ReplaceAll(string(b), "\xc0\x80", "\x00")
}

// QualifiedName returns the dotted name, e.g. a.b.C$D.
func (c *ClassFile) QualifiedName() string {
	return InternalToQualified(c.ThisClass)
}

// PackageName returns the dotted package, empty for the default package.
func (c *ClassFile) PackageName() string {
	i := strings.LastIndex(c.ThisClass, "/")
	if i < 0 {
		return ""
	}
	return InternalToQualified(c.ThisClass[:i])
}

// SimpleName returns the class name without package or outer classes.
func (c *ClassFile) SimpleName() string {
	name := c.ThisClass
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "$"); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}

// Is reports whether all bits of flag are set.
func (c *ClassFile) Is(flag uint16) bool {
	return c.AccessFlags&flag == flag
}

// Is reports whether all bits of flag are set.
func (m Member) Is(flag uint16) bool {
	return m.AccessFlags&flag == flag
}

// InternalToQualified converts a/b/C to a.b.C.
func InternalToQualified(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// QualifiedToInternal converts a.b.C to a/b/C.
func QualifiedToInternal(qualified string) string {
	return strings.ReplaceAll(qualified, ".", "/")
}
