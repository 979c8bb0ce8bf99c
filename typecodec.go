package tiffcore

import (
	"encoding/binary"
)

// entrySize returns the on-disk size of one directory entry: 12 bytes
// for classic TIFF, 20 for BigTIFF (spec.md §4.2/§6).
func entrySize(bigTiff bool) uint64 {
	if bigTiff {
		return 20
	}
	return 12
}

// inlineCapacity is the number of bytes available in the value-or-offset
// slot: 4 for classic, 8 for BigTIFF.
func inlineCapacity(bigTiff bool) uint64 {
	if bigTiff {
		return 8
	}
	return 4
}

// extraBuffer accumulates the "pointer area" for values that don't fit
// inline, exactly like the teacher's TagData in field.go: a byte buffer
// plus the absolute file offset its start will land at once appended.
type extraBuffer struct {
	buf    []byte
	offset uint64
}

func (e *extraBuffer) nextOffset() uint64 {
	return e.offset + uint64(len(e.buf))
}

func (e *extraBuffer) write(p []byte) {
	e.buf = append(e.buf, p...)
}

// readRawEntry reads one directory entry header and its inline/offset
// payload bytes without interpreting them, per spec.md §4.2.
func readRawEntry(s ByteStream, bigTiff bool) (tag uint16, typ TagType, count uint64, valueBytes []byte, err error) {
	tagU16, err := s.ReadU16()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	typU16, err := s.ReadU16()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if bigTiff {
		count, err = s.ReadU64()
	} else {
		var c32 uint32
		c32, err = s.ReadU32()
		count = uint64(c32)
	}
	if err != nil {
		return 0, 0, 0, nil, err
	}
	valueBytes = make([]byte, inlineCapacity(bigTiff))
	if err := s.ReadExact(valueBytes); err != nil {
		return 0, 0, 0, nil, err
	}
	return tagU16, TagType(typU16), count, valueBytes, nil
}

// decodeEntryValue interprets a raw entry (as read by readRawEntry) into
// a TagValue, following the value's data to an external file offset if
// it doesn't fit inline.
func decodeEntryValue(s ByteStream, typ TagType, count uint64, inlineOrOffset []byte, bigTiff bool) (TagValue, error) {
	elemSize := typeSize(typ)
	if elemSize == 0 {
		// Unknown type: keep opaque. Only the raw inline value-or-offset
		// field is kept and re-emitted verbatim on write; bytes stored
		// out of line at that offset are neither read nor copied.
		return TagValue{Type: typ, UnknownCode: uint16(typ), UnknownCount: count, UnknownBytes: append([]byte(nil), inlineOrOffset...)}, nil
	}
	totalBytes := elemSize * count
	var data []byte
	if totalBytes <= inlineCapacity(bigTiff) {
		data = inlineOrOffset[:totalBytes]
	} else {
		order := s.ByteOrder()
		var offset uint64
		if bigTiff {
			offset = order.Uint64(inlineOrOffset)
		} else {
			offset = uint64(order.Uint32(inlineOrOffset))
		}
		data = make([]byte, totalBytes)
		if _, err := s.ReadAt(data, int64(offset)); err != nil {
			return TagValue{}, errIO("decodeEntryValue", err)
		}
	}
	return decodeTypedBytes(typ, count, data, s.ByteOrder())
}

func decodeTypedBytes(typ TagType, count uint64, data []byte, order binary.ByteOrder) (TagValue, error) {
	v := TagValue{Type: typ}
	switch typ {
	case TByte:
		v.Bytes = append([]byte(nil), data...)
	case TSByte:
		v.SBytes = make([]int8, count)
		for i := range v.SBytes {
			v.SBytes[i] = int8(data[i])
		}
	case TUndefined:
		v.Undefined = append([]byte(nil), data...)
	case TAscii:
		v.AsciiList, v.Ascii = splitAscii(data)
	case TShort:
		v.Shorts = make([]uint16, count)
		for i := range v.Shorts {
			v.Shorts[i] = order.Uint16(data[i*2:])
		}
	case TSShort:
		v.SShorts = make([]int16, count)
		for i := range v.SShorts {
			v.SShorts[i] = int16(order.Uint16(data[i*2:]))
		}
	case TLong, TIfd:
		v.Longs = make([]uint32, count)
		for i := range v.Longs {
			v.Longs[i] = order.Uint32(data[i*4:])
		}
	case TSLong:
		v.SLongs = make([]int32, count)
		for i := range v.SLongs {
			v.SLongs[i] = int32(order.Uint32(data[i*4:]))
		}
	case TRational:
		v.Rationals = make([]Rational, count)
		for i := range v.Rationals {
			v.Rationals[i] = Rational{Num: order.Uint32(data[i*8:]), Den: order.Uint32(data[i*8+4:])}
		}
	case TSRational:
		v.SRationals = make([]SRational, count)
		for i := range v.SRationals {
			v.SRationals[i] = SRational{Num: int32(order.Uint32(data[i*8:])), Den: int32(order.Uint32(data[i*8+4:]))}
		}
	case TFloat:
		v.Floats = make([]float32, count)
		for i := range v.Floats {
			v.Floats[i] = float32FromBits(order.Uint32(data[i*4:]))
		}
	case TDouble:
		v.Doubles = make([]float64, count)
		for i := range v.Doubles {
			v.Doubles[i] = float64FromBits(order.Uint64(data[i*8:]))
		}
	case TLong8:
		v.Long8s = make([]uint64, count)
		for i := range v.Long8s {
			v.Long8s[i] = order.Uint64(data[i*8:])
		}
	case TSLong8:
		v.SLong8s = make([]int64, count)
		for i := range v.SLong8s {
			v.SLong8s[i] = int64(order.Uint64(data[i*8:]))
		}
	case TIfd8:
		v.Ifd8s = make([]uint64, count)
		for i := range v.Ifd8s {
			v.Ifd8s[i] = order.Uint64(data[i*8:])
		}
	default:
		v.UnknownCode = uint16(typ)
		v.UnknownCount = count
		v.UnknownBytes = append([]byte(nil), data...)
	}
	return v, nil
}

// splitAscii splits a null-terminated ASCII entry into its component
// strings. A single string has exactly one trailing null; multiple
// strings are null-separated with a final trailing null, per spec.md
// §4.2. An empty list (count==0) has no trailing-null requirement.
func splitAscii(data []byte) (list []string, single string) {
	if len(data) == 0 {
		return nil, ""
	}
	trimmed := data
	if trimmed[len(trimmed)-1] == 0 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		return nil, ""
	}
	parts := splitNul(trimmed)
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts, parts[0]
}

func splitNul(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	out = append(out, string(b[start:]))
	return out
}

// encodedValueBytes renders v's raw element bytes (without the tag/type/
// count header) in order, for writing either inline or into the extra
// buffer.
func encodedValueBytes(v TagValue, order binary.ByteOrder) []byte {
	switch v.Type {
	case TByte:
		return append([]byte(nil), v.Bytes...)
	case TSByte:
		out := make([]byte, len(v.SBytes))
		for i, b := range v.SBytes {
			out[i] = byte(b)
		}
		return out
	case TUndefined:
		return append([]byte(nil), v.Undefined...)
	case TAscii:
		return asciiBytes(v)
	case TShort:
		out := make([]byte, len(v.Shorts)*2)
		for i, s := range v.Shorts {
			order.PutUint16(out[i*2:], s)
		}
		return out
	case TSShort:
		out := make([]byte, len(v.SShorts)*2)
		for i, s := range v.SShorts {
			order.PutUint16(out[i*2:], uint16(s))
		}
		return out
	case TLong, TIfd:
		out := make([]byte, len(v.Longs)*4)
		for i, l := range v.Longs {
			order.PutUint32(out[i*4:], l)
		}
		return out
	case TSLong:
		out := make([]byte, len(v.SLongs)*4)
		for i, l := range v.SLongs {
			order.PutUint32(out[i*4:], uint32(l))
		}
		return out
	case TRational:
		out := make([]byte, len(v.Rationals)*8)
		for i, r := range v.Rationals {
			order.PutUint32(out[i*8:], r.Num)
			order.PutUint32(out[i*8+4:], r.Den)
		}
		return out
	case TSRational:
		out := make([]byte, len(v.SRationals)*8)
		for i, r := range v.SRationals {
			order.PutUint32(out[i*8:], uint32(r.Num))
			order.PutUint32(out[i*8+4:], uint32(r.Den))
		}
		return out
	case TFloat:
		out := make([]byte, len(v.Floats)*4)
		for i, f := range v.Floats {
			order.PutUint32(out[i*4:], float32Bits(f))
		}
		return out
	case TDouble:
		out := make([]byte, len(v.Doubles)*8)
		for i, d := range v.Doubles {
			order.PutUint64(out[i*8:], float64Bits(d))
		}
		return out
	case TLong8:
		out := make([]byte, len(v.Long8s)*8)
		for i, l := range v.Long8s {
			order.PutUint64(out[i*8:], l)
		}
		return out
	case TSLong8:
		out := make([]byte, len(v.SLong8s)*8)
		for i, l := range v.SLong8s {
			order.PutUint64(out[i*8:], uint64(l))
		}
		return out
	case TIfd8:
		out := make([]byte, len(v.Ifd8s)*8)
		for i, l := range v.Ifd8s {
			order.PutUint64(out[i*8:], l)
		}
		return out
	default:
		return append([]byte(nil), v.UnknownBytes...)
	}
}

func asciiBytes(v TagValue) []byte {
	if len(v.AsciiList) > 0 {
		var out []byte
		for _, s := range v.AsciiList {
			out = append(out, []byte(s)...)
			out = append(out, 0)
		}
		return out
	}
	out := append([]byte(nil), []byte(v.Ascii)...)
	return append(out, 0)
}

// writeEntry writes one directory entry (tag+type+count+value-or-offset)
// to s, spilling values that don't fit inline into extra. It does not
// itself enforce ascending tag order; callers (ifd.go emit) are
// responsible for sorting entries by tag before calling this.
func writeEntry(s ByteStream, tag uint16, v TagValue, bigTiff bool, extra *extraBuffer) error {
	order := s.ByteOrder()
	data := encodedValueBytes(v, order)
	count := v.Count()
	if v.Type == 0 {
		count = uint64(len(data))
	}

	if err := s.WriteU16(tag); err != nil {
		return err
	}
	typeCode := uint16(v.Type)
	if v.Type == 0 {
		typeCode = v.UnknownCode
	}
	if err := s.WriteU16(typeCode); err != nil {
		return err
	}
	if bigTiff {
		if err := s.WriteU64(count); err != nil {
			return err
		}
	} else {
		if err := s.WriteU32(uint32(count)); err != nil {
			return err
		}
	}

	capBytes := inlineCapacity(bigTiff)
	if uint64(len(data)) <= capBytes {
		padded := make([]byte, capBytes)
		copy(padded, data)
		return s.WriteExact(padded)
	}

	off := extra.nextOffset()
	if off%2 != 0 {
		extra.write([]byte{0})
		off = extra.nextOffset()
	}
	extra.write(data)
	if bigTiff {
		return s.WriteU64(off)
	}
	return s.WriteU32(uint32(off))
}

// writtenEntrySize returns how many bytes of the "extra" pointer-area
// buffer a value of this shape will need once emitted, mirroring the
// teacher's arrayFieldSize in field.go. Emit does not call it.
func writtenEntrySize(v TagValue, bigTiff bool) (overflow uint64) {
	order := binary.BigEndian // size doesn't depend on byte order
	data := encodedValueBytes(v, order)
	capBytes := inlineCapacity(bigTiff)
	if uint64(len(data)) <= capBytes {
		return 0
	}
	n := uint64(len(data))
	if n%2 != 0 {
		n++
	}
	return n
}
