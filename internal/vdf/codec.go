package vdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned (wrapped) by Decode for any input that is
// not a well-formed binary VDF document.
var ErrMalformed = errors.New("malformed binary vdf")

// ErrUnencodable is returned (wrapped) by Check for a tree Encode would
// write ambiguously.
var ErrUnencodable = errors.New("unencodable vdf tree")

const (
	tagEnd    byte = 0x08
	tagEndAlt byte = 0x0B
)

// maxDepth bounds map nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

type decoder struct {
	data []byte
	pos  int
}

// Decode parses a binary VDF document into its root map.
//
// Empty input yields an empty map. The root map may omit its end marker
// only if the data ends exactly where the marker would be.
func Decode(data []byte) (Map, error) {
	if len(data) == 0 {
		return Map{}, nil
	}

	d := &decoder{data: data}
	root, _, err := d.readMap(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, d.errorf("%d trailing bytes after root", len(d.data)-d.pos)
	}
	return root, nil
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrMalformed, fmt.Sprintf(format, args...), d.pos)
}

// readMap reads fields until an end marker. The second return value
// reports whether the end marker was seen before the buffer ran out.
func (d *decoder) readMap(depth int) (Map, bool, error) {
	m := Map{}
	for {
		if d.pos >= len(d.data) {
			return m, false, nil
		}
		tag := d.data[d.pos]
		d.pos++
		if tag == tagEnd || tag == tagEndAlt {
			return m, true, nil
		}

		if !known(Kind(tag)) {
			d.pos--
			return nil, false, d.errorf("unknown type tag 0x%02x", tag)
		}
		key, err := d.readCString()
		if err != nil {
			return nil, false, err
		}

		var v Value
		switch Kind(tag) {
		case KindMap:
			if depth+1 >= maxDepth {
				return nil, false, d.errorf("nesting deeper than %d", maxDepth)
			}
			child, closed, err := d.readMap(depth + 1)
			if err != nil {
				return nil, false, err
			}
			if !closed {
				return nil, false, d.errorf("map %q is never closed", key)
			}
			v = Object(child)
		case KindString:
			s, err := d.readCString()
			if err != nil {
				return nil, false, err
			}
			v = String(s)
		case KindWideString:
			w, err := d.readWideString()
			if err != nil {
				return nil, false, err
			}
			v = Value{kind: KindWideString, wide: w}
		case KindInt32, KindFloat32, KindPointer, KindColor:
			b, err := d.take(4)
			if err != nil {
				return nil, false, err
			}
			v = Value{kind: Kind(tag), num: uint64(binary.LittleEndian.Uint32(b))}
		case KindUint64, KindInt64:
			b, err := d.take(8)
			if err != nil {
				return nil, false, err
			}
			v = Value{kind: Kind(tag), num: binary.LittleEndian.Uint64(b)}
		}
		m = append(m, Field{Key: key, Value: v})
	}
}

func known(k Kind) bool {
	switch k {
	case KindMap, KindString, KindInt32, KindFloat32, KindPointer,
		KindWideString, KindColor, KindUint64, KindInt64:
		return true
	}
	return false
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.data)-d.pos < n {
		return nil, d.errorf("truncated value: need %d bytes, have %d", n, len(d.data)-d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readCString() (string, error) {
	i := bytes.IndexByte(d.data[d.pos:], 0)
	if i < 0 {
		return "", d.errorf("string is not NUL-terminated")
	}
	s := string(d.data[d.pos : d.pos+i])
	d.pos += i + 1
	return s, nil
}

func (d *decoder) readWideString() ([]uint16, error) {
	var w []uint16
	for {
		b, err := d.take(2)
		if err != nil {
			return nil, d.errorf("wide string is not NUL-terminated")
		}
		c := binary.LittleEndian.Uint16(b)
		if c == 0 {
			return w, nil
		}
		w = append(w, c)
	}
}

// Check reports the first key or string in m that holds a NUL. NUL
// terminates keys and strings on disk, so such a tree would be written
// as a different, usually unreadable, document.
func Check(m Map) error {
	return checkMap(m, "")
}

func checkMap(m Map, path string) error {
	for _, f := range m {
		p := f.Key
		if path != "" {
			p = path + "/" + f.Key
		}
		if strings.IndexByte(f.Key, 0) >= 0 {
			return fmt.Errorf("%w: key %q contains NUL", ErrUnencodable, p)
		}
		switch f.Value.kind {
		case KindMap:
			if err := checkMap(f.Value.m, p); err != nil {
				return err
			}
		case KindString:
			if strings.IndexByte(f.Value.str, 0) >= 0 {
				return fmt.Errorf("%w: value of %q contains NUL", ErrUnencodable, p)
			}
		case KindWideString:
			for _, c := range f.Value.wide {
				if c == 0 {
					return fmt.Errorf("%w: value of %q contains NUL", ErrUnencodable, p)
				}
			}
		}
	}
	return nil
}

// Encode serializes m as a root document. Trees that fail Check do not
// round-trip.
func Encode(m Map) []byte {
	var buf bytes.Buffer
	writeMap(&buf, m)
	return buf.Bytes()
}

func writeMap(buf *bytes.Buffer, m Map) {
	var scratch [8]byte
	for _, f := range m {
		v := f.Value
		buf.WriteByte(byte(v.kind))
		buf.WriteString(f.Key)
		buf.WriteByte(0)

		switch v.kind {
		case KindMap:
			writeMap(buf, v.m)
		case KindString:
			buf.WriteString(v.str)
			buf.WriteByte(0)
		case KindWideString:
			for _, c := range v.wide {
				binary.LittleEndian.PutUint16(scratch[:2], c)
				buf.Write(scratch[:2])
			}
			buf.Write([]byte{0, 0})
		case KindInt32, KindFloat32, KindPointer, KindColor:
			binary.LittleEndian.PutUint32(scratch[:4], uint32(v.num))
			buf.Write(scratch[:4])
		case KindUint64, KindInt64:
			binary.LittleEndian.PutUint64(scratch[:8], v.num)
			buf.Write(scratch[:8])
		}
	}
	buf.WriteByte(tagEnd)
}
