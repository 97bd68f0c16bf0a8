package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Common errors returned by the PLY parser.
var (
	ErrInvalidPLY      = errors.New("invalid PLY data")
	ErrMissingPosition = errors.New("PLY vertex element has no x, y, z properties")

	errNoVertexElement = errors.New("PLY file has no vertex element")
)

// maxHeaderLines bounds the header so a binary file without "end_header" fails fast.
const maxHeaderLines = 4096

// plyFormat is the body encoding declared by the "format" header line.
type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
	plyBinaryBE
)

func (f plyFormat) String() string {
	switch f {
	case plyASCII:
		return "ascii"
	case plyBinaryLE:
		return "binary_little_endian"
	case plyBinaryBE:
		return "binary_big_endian"
	default:
		return "unknown"
	}
}

func (f plyFormat) byteOrder() binary.ByteOrder {
	if f == plyBinaryBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// scalarType is a PLY property storage type.
type scalarType int

const (
	typeInt8 scalarType = iota
	typeUint8
	typeInt16
	typeUint16
	typeInt32
	typeUint32
	typeFloat32
	typeFloat64
)

var scalarTypes = map[string]scalarType{
	"char": typeInt8, "int8": typeInt8,
	"uchar": typeUint8, "uint8": typeUint8,
	"short": typeInt16, "int16": typeInt16,
	"ushort": typeUint16, "uint16": typeUint16,
	"int": typeInt32, "int32": typeInt32,
	"uint": typeUint32, "uint32": typeUint32,
	"float": typeFloat32, "float32": typeFloat32,
	"double": typeFloat64, "float64": typeFloat64,
}

func (t scalarType) size() int {
	switch t {
	case typeInt8, typeUint8:
		return 1
	case typeInt16, typeUint16:
		return 2
	case typeInt32, typeUint32, typeFloat32:
		return 4
	default:
		return 8
	}
}

// decode reads one value of type t from the start of b.
func (t scalarType) decode(b []byte, order binary.ByteOrder) float64 {
	switch t {
	case typeInt8:
		return float64(int8(b[0]))
	case typeUint8:
		return float64(b[0])
	case typeInt16:
		return float64(int16(order.Uint16(b)))
	case typeUint16:
		return float64(order.Uint16(b))
	case typeInt32:
		return float64(int32(order.Uint32(b)))
	case typeUint32:
		return float64(order.Uint32(b))
	case typeFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	default:
		return math.Float64frombits(order.Uint64(b))
	}
}

type plyProperty struct {
	name string
	typ  scalarType

	// list properties carry a count of countTyp followed by that many typ values.
	list     bool
	countTyp scalarType
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// stride returns the byte size of one record, or false when the element has
// list properties and records vary in size.
func (e *plyElement) stride() (int, bool) {
	n := 0
	for _, p := range e.props {
		if p.list {
			return 0, false
		}
		n += p.typ.size()
	}
	return n, true
}

// index maps property names to their position in a record.
func (e *plyElement) index() map[string]int {
	m := make(map[string]int, len(e.props))
	for i, p := range e.props {
		m[p.name] = i
	}
	return m
}

type plyHeader struct {
	format   plyFormat
	elements []plyElement
	comments []string
}

func (h *plyHeader) vertex() (int, *plyElement) {
	for i := range h.elements {
		if h.elements[i].name == "vertex" {
			return i, &h.elements[i]
		}
	}
	return -1, nil
}

// readHeader consumes the header through the "end_header" line, leaving r
// positioned at the first byte of the body.
func readHeader(r *bufio.Reader) (*plyHeader, error) {
	h := &plyHeader{format: -1}
	for n := 0; ; n++ {
		if n >= maxHeaderLines {
			return nil, fmt.Errorf("header longer than %d lines: %w", maxHeaderLines, ErrInvalidPLY)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("header ended before end_header: %w", ErrInvalidPLY)
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if n == 0 {
			if line != "ply" {
				return nil, fmt.Errorf("missing ply magic: %w", ErrInvalidPLY)
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("malformed format line %q: %w", line, ErrInvalidPLY)
			}
			switch fields[1] {
			case "ascii":
				h.format = plyASCII
			case "binary_little_endian":
				h.format = plyBinaryLE
			case "binary_big_endian":
				h.format = plyBinaryBE
			default:
				return nil, fmt.Errorf("unknown format %q: %w", fields[1], ErrInvalidPLY)
			}
		case "comment", "obj_info":
			h.comments = append(h.comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("malformed element line %q: %w", line, ErrInvalidPLY)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("bad element count %q: %w", fields[2], ErrInvalidPLY)
			}
			h.elements = append(h.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(h.elements) == 0 {
				return nil, fmt.Errorf("property before any element: %w", ErrInvalidPLY)
			}
			p, err := parseProperty(fields)
			if err != nil {
				return nil, err
			}
			el := &h.elements[len(h.elements)-1]
			el.props = append(el.props, p)
		case "end_header":
			if h.format < 0 {
				return nil, fmt.Errorf("missing format line: %w", ErrInvalidPLY)
			}
			return h, nil
		default:
			return nil, fmt.Errorf("unknown header keyword %q: %w", fields[0], ErrInvalidPLY)
		}
	}
}

func parseProperty(fields []string) (plyProperty, error) {
	if len(fields) == 5 && fields[1] == "list" {
		ct, ok1 := scalarTypes[fields[2]]
		vt, ok2 := scalarTypes[fields[3]]
		if !ok1 || !ok2 || ct == typeFloat32 || ct == typeFloat64 {
			return plyProperty{}, fmt.Errorf("bad list property %q: %w", strings.Join(fields, " "), ErrInvalidPLY)
		}
		return plyProperty{name: fields[4], typ: vt, list: true, countTyp: ct}, nil
	}
	if len(fields) != 3 {
		return plyProperty{}, fmt.Errorf("malformed property %q: %w", strings.Join(fields, " "), ErrInvalidPLY)
	}
	t, ok := scalarTypes[fields[1]]
	if !ok {
		return plyProperty{}, fmt.Errorf("unknown property type %q: %w", fields[1], ErrInvalidPLY)
	}
	return plyProperty{name: fields[2], typ: t}, nil
}
