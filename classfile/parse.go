package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

var ErrBadMagic = errors.New("not a class file")

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

// pool keeps only what member and attribute decoding needs: UTF-8 values
// and the name index of Class entries.
type pool struct {
	utf8  map[uint16]string
	class map[uint16]uint16
}

func (p *pool) str(idx uint16) string {
	return p.utf8[idx]
}

func (p *pool) className(idx uint16) string {
	if idx == 0 {
		return ""
	}
	return p.utf8[p.class[idx]]
}

type reader struct {
	r   io.Reader
	err error
}

func (r *reader) u1() uint8 {
	if r.err != nil {
		return 0
	}
	var buf [1]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return buf[0]
}

func (r *reader) u2() uint16 {
	if r.err != nil {
		return 0
	}
	var buf [2]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return binary.BigEndian.Uint16(buf[:])
}

func (r *reader) u4() uint32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	_, r.err = io.ReadFull(r.r, buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return buf
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	_, r.err = io.CopyN(io.Discard, r.r, int64(n))
}

func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open class file")
	}
	defer f.Close()
	return Parse(f)
}

func Parse(rd io.Reader) (*ClassFile, error) {
	r := &reader{r: rd}

	if magic := r.u4(); r.err != nil {
		return nil, errors.Wrap(r.err, "read magic")
	} else if magic != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "magic 0x%X", magic)
	}

	r.u2()
	cf := &ClassFile{MajorVersion: r.u2()}

	cp, err := readPool(r)
	if err != nil {
		return nil, err
	}

	cf.Access = AccessFlags(r.u2())
	cf.Name = cp.className(r.u2())
	cf.SuperName = cp.className(r.u2())

	n := int(r.u2())
	for i := 0; i < n; i++ {
		cf.Interfaces = append(cf.Interfaces, cp.className(r.u2()))
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "read class header")
	}

	if cf.Fields, err = readMembers(r, cp, false); err != nil {
		return nil, errors.Wrap(err, "read fields")
	}
	if cf.Methods, err = readMembers(r, cp, true); err != nil {
		return nil, errors.Wrap(err, "read methods")
	}

	n = int(r.u2())
	for i := 0; i < n; i++ {
		name, info := readAttribute(r, cp)
		if name == "Signature" && len(info) >= 2 {
			cf.Signature = cp.str(binary.BigEndian.Uint16(info))
		}
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "read class attributes")
	}

	return cf, nil
}

func readPool(r *reader) (*pool, error) {
	count := r.u2()
	cp := &pool{utf8: make(map[uint16]string), class: make(map[uint16]uint16)}
	for i := uint16(1); i < count; i++ {
		tag := r.u1()
		switch tag {
		case tagUtf8:
			cp.utf8[i] = decodeModifiedUtf8(r.bytes(int(r.u2())))
		case tagClass:
			cp.class[i] = r.u2()
		case tagString, tagMethodType, tagModule, tagPackage:
			r.skip(2)
		case tagMethodHandle:
			r.skip(3)
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			r.skip(4)
		case tagLong, tagDouble:
			r.skip(8)
			i++
		default:
			if r.err == nil {
				return nil, errors.Errorf("constant pool entry %d: unknown tag %d", i, tag)
			}
		}
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "constant pool entry %d", i)
		}
	}
	return cp, nil
}

func readMembers(r *reader, cp *pool, methods bool) ([]Member, error) {
	n := int(r.u2())
	members := make([]Member, 0, n)
	for i := 0; i < n; i++ {
		m := Member{
			Access:     AccessFlags(r.u2()),
			Name:       cp.str(r.u2()),
			Descriptor: cp.str(r.u2()),
		}
		var lvt map[int]string
		attrs := int(r.u2())
		for j := 0; j < attrs; j++ {
			name, info := readAttribute(r, cp)
			switch name {
			case "Signature":
				if len(info) >= 2 {
					m.Signature = cp.str(binary.BigEndian.Uint16(info))
				}
			case "MethodParameters":
				if methods {
					m.ParamNames = methodParameters(info, cp)
				}
			case "Code":
				if methods {
					lvt = localVariables(info, cp)
				}
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		if methods && m.ParamNames == nil && lvt != nil {
			m.ParamNames = namesFromSlots(&m, lvt)
		}
		members = append(members, m)
	}
	return members, nil
}

func readAttribute(r *reader, cp *pool) (string, []byte) {
	name := cp.str(r.u2())
	length := r.u4()
	return name, r.bytes(int(length))
}

func methodParameters(info []byte, cp *pool) []string {
	if len(info) < 1 {
		return nil
	}
	count := int(info[0])
	if len(info) < 1+count*4 {
		return nil
	}
	names := make([]string, count)
	for i := 0; i < count; i++ {
		off := 1 + i*4
		names[i] = cp.str(binary.BigEndian.Uint16(info[off:]))
	}
	return names
}

// localVariables returns the LocalVariableTable entries live at pc 0,
// keyed by slot.
func localVariables(info []byte, cp *pool) map[int]string {
	r := &reader{r: bytes.NewReader(info)}
	r.skip(4)
	r.skip(int(r.u4()))
	r.skip(int(r.u2()) * 8)
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, data := readAttribute(r, cp)
		if name != "LocalVariableTable" || len(data) < 2 {
			continue
		}
		entries := int(binary.BigEndian.Uint16(data))
		slots := make(map[int]string, entries)
		for e := 0; e < entries; e++ {
			off := 2 + e*10
			if off+10 > len(data) {
				break
			}
			startPC := binary.BigEndian.Uint16(data[off:])
			nameIdx := binary.BigEndian.Uint16(data[off+4:])
			slot := int(binary.BigEndian.Uint16(data[off+8:]))
			if startPC == 0 {
				slots[slot] = cp.str(nameIdx)
			}
		}
		return slots
	}
	return nil
}

func namesFromSlots(m *Member, slots map[int]string) []string {
	md := ParseMethodDescriptor(m.Descriptor)
	if md == nil {
		return nil
	}
	slot := 0
	if !m.Access.IsStatic() {
		slot = 1
	}
	names := make([]string, len(md.Parameters))
	for i, p := range md.Parameters {
		names[i] = slots[slot]
		slot += p.Slots()
	}
	return names
}

func decodeModifiedUtf8(b []byte) string {
	runes := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			runes = append(runes, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			runes = append(runes, rune(c&0x1F)<<6|rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			r := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			// surrogate pairs are encoded as two 3-byte sequences
			if r >= 0xD800 && r <= 0xDBFF && i+5 < len(b) && b[i+3] == 0xED {
				low := rune(b[i+3]&0x0F)<<12 | rune(b[i+4]&0x3F)<<6 | rune(b[i+5]&0x3F)
				if low >= 0xDC00 && low <= 0xDFFF {
					runes = append(runes, 0x10000+((r-0xD800)<<10)+(low-0xDC00))
					i += 6
					continue
				}
			}
			runes = append(runes, r)
			i += 3
		default:
			runes = append(runes, rune(c))
			i++
		}
	}
	return string(runes)
}
