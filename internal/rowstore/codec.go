package rowstore

import (
	"fmt"
	"math"

	"github.com/relaxdb/engine/internal/alias/bx"
)

// ColumnType is the physical encoding of a column value, independent of
// any SQL-level type name.
type ColumnType uint8

const (
	TypeInt64 ColumnType = iota
	TypeFloat64
	TypeBool
	TypeString
	TypeBytes
	TypeTimestamp // stored as int64 unix-nanos
)

// ColumnSpec describes one column's physical layout for EncodeRow /
// DecodeRow. MaxLength bounds String/Bytes columns; 0 means unbounded
// (still length-prefixed on the wire).
type ColumnSpec struct {
	Type      ColumnType
	MaxLength int
}

func fixedWidth(t ColumnType) (int, bool) {
	switch t {
	case TypeInt64, TypeFloat64, TypeTimestamp:
		return 8, true
	case TypeBool:
		return 1, true
	default:
		return 0, false
	}
}

// EncodeRow serializes values against specs into a null-bitmap-prefixed
// tuple: a ceil(n/8)-byte null bitmap, followed by each non-null
// column's fixed-width value or a uint32 length + payload for
// variable-length columns.
func EncodeRow(values []any, specs []ColumnSpec) ([]byte, error) {
	if len(values) != len(specs) {
		return nil, fmt.Errorf("rowstore: encode: %d values for %d columns", len(values), len(specs))
	}

	bitmapLen := (len(specs) + 7) / 8
	bitmap := make([]byte, bitmapLen)
	payload := make([]byte, 0, 64)

	for i, spec := range specs {
		v := values[i]
		if v == nil {
			bitmap[i/8] |= 1 << uint(i%8)
			continue
		}

		switch spec.Type {
		case TypeInt64:
			iv, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want int64, got %T", i, v)
			}
			var buf [8]byte
			bx.PutU64(buf[:], uint64(iv))
			payload = append(payload, buf[:]...)

		case TypeFloat64:
			fv, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want float64, got %T", i, v)
			}
			var buf [8]byte
			bx.PutU64(buf[:], math.Float64bits(fv))
			payload = append(payload, buf[:]...)

		case TypeTimestamp:
			tv, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want int64 (unix nanos), got %T", i, v)
			}
			var buf [8]byte
			bx.PutU64(buf[:], uint64(tv))
			payload = append(payload, buf[:]...)

		case TypeBool:
			bv, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want bool, got %T", i, v)
			}
			b := byte(0)
			if bv {
				b = 1
			}
			payload = append(payload, b)

		case TypeString:
			sv, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want string, got %T", i, v)
			}
			if spec.MaxLength > 0 && len(sv) > spec.MaxLength {
				return nil, fmt.Errorf("rowstore: column %d: value exceeds max length %d", i, spec.MaxLength)
			}
			var lenBuf [4]byte
			bx.PutU32(lenBuf[:], uint32(len(sv)))
			payload = append(payload, lenBuf[:]...)
			payload = append(payload, sv...)

		case TypeBytes:
			bv, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("rowstore: column %d: want []byte, got %T", i, v)
			}
			if spec.MaxLength > 0 && len(bv) > spec.MaxLength {
				return nil, fmt.Errorf("rowstore: column %d: value exceeds max length %d", i, spec.MaxLength)
			}
			var lenBuf [4]byte
			bx.PutU32(lenBuf[:], uint32(len(bv)))
			payload = append(payload, lenBuf[:]...)
			payload = append(payload, bv...)

		default:
			return nil, fmt.Errorf("rowstore: column %d: unknown column type %d", i, spec.Type)
		}
	}

	out := make([]byte, 0, len(bitmap)+len(payload))
	out = append(out, bitmap...)
	out = append(out, payload...)
	return out, nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(buf []byte, specs []ColumnSpec) ([]any, error) {
	bitmapLen := (len(specs) + 7) / 8
	if len(buf) < bitmapLen {
		return nil, fmt.Errorf("rowstore: decode: buffer shorter than null bitmap")
	}
	bitmap := buf[:bitmapLen]
	off := bitmapLen

	values := make([]any, len(specs))

	for i, spec := range specs {
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			values[i] = nil
			continue
		}

		if w, fixed := fixedWidth(spec.Type); fixed {
			if off+w > len(buf) {
				return nil, fmt.Errorf("rowstore: decode: column %d truncated", i)
			}
			switch spec.Type {
			case TypeInt64:
				values[i] = int64(bx.U64(buf[off : off+w]))
			case TypeFloat64:
				values[i] = math.Float64frombits(bx.U64(buf[off : off+w]))
			case TypeTimestamp:
				values[i] = int64(bx.U64(buf[off : off+w]))
			case TypeBool:
				values[i] = buf[off] != 0
			}
			off += w
			continue
		}

		if off+4 > len(buf) {
			return nil, fmt.Errorf("rowstore: decode: column %d length header truncated", i)
		}
		n := int(bx.U32(buf[off : off+4]))
		off += 4
		if off+n > len(buf) {
			return nil, fmt.Errorf("rowstore: decode: column %d payload truncated", i)
		}
		raw := buf[off : off+n]
		off += n

		switch spec.Type {
		case TypeString:
			values[i] = string(raw)
		case TypeBytes:
			cp := make([]byte, n)
			copy(cp, raw)
			values[i] = cp
		default:
			return nil, fmt.Errorf("rowstore: decode: column %d: unknown variable-length type %d", i, spec.Type)
		}
	}

	return values, nil
}

// EncodedSize returns the exact byte length EncodeRow would produce; it
// encodes the row to measure it.
func EncodedSize(values []any, specs []ColumnSpec) (int, error) {
	buf, err := EncodeRow(values, specs)
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}
