package tiffcore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitAsciiSingleString(t *testing.T) {
	list, single := splitAscii([]byte("hello\x00"))
	require.Nil(t, list)
	require.Equal(t, "hello", single)
}

func TestSplitAsciiMultipleStrings(t *testing.T) {
	list, single := splitAscii([]byte("a\x00bc\x00\x00"))
	require.Equal(t, []string{"a", "bc", ""}, list)
	require.Equal(t, "a", single)
}

func TestSplitAsciiEmpty(t *testing.T) {
	list, single := splitAscii(nil)
	require.Nil(t, list)
	require.Equal(t, "", single)
}

func TestAsciiBytesRoundTrip(t *testing.T) {
	v := TagValue{Type: TAscii, Ascii: "abc"}
	b := asciiBytes(v)
	require.Equal(t, []byte("abc\x00"), b)
	list, single := splitAscii(b)
	require.Nil(t, list)
	require.Equal(t, "abc", single)
}

func TestEncodeDecodeShortRoundTrip(t *testing.T) {
	v := TagValue{Type: TShort, Shorts: []uint16{1, 2, 65535}}
	order := binary.BigEndian
	data := encodedValueBytes(v, order)
	decoded, err := decodeTypedBytes(TShort, 3, data, order)
	require.NoError(t, err)
	require.Equal(t, v.Shorts, decoded.Shorts)
}

func TestEncodeDecodeRationalRoundTrip(t *testing.T) {
	v := TagValue{Type: TRational, Rationals: []Rational{{Num: 1, Den: 2}, {Num: 300, Den: 7}}}
	order := binary.LittleEndian
	data := encodedValueBytes(v, order)
	decoded, err := decodeTypedBytes(TRational, 2, data, order)
	require.NoError(t, err)
	require.Equal(t, v.Rationals, decoded.Rationals)
}

func TestEncodeDecodeUnknownTypePreservesBytes(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	decoded, err := decodeTypedBytes(TagType(999), 4, raw, binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, raw, decoded.UnknownBytes)
	require.Equal(t, uint16(999), decoded.UnknownCode)
}

func TestWrittenEntrySizeInlineVsOverflow(t *testing.T) {
	small := TagValue{Type: TShort, Shorts: []uint16{1, 2}}
	require.Equal(t, uint64(0), writtenEntrySize(small, false), "2 shorts (4 bytes) fit inline in classic TIFF")

	large := TagValue{Type: TShort, Shorts: []uint16{1, 2, 3, 4, 5}}
	require.Greater(t, writtenEntrySize(large, false), uint64(0), "5 shorts (10 bytes) overflow classic TIFF's 4-byte inline slot")
}

func TestWriteEntryThenReadRawEntryRoundTrip(t *testing.T) {
	mf := newMemFile()
	s := NewFileStream(mf)
	s.SetByteOrder(binary.BigEndian)

	v := TagValue{Type: TLong, Longs: []uint32{7, 8, 9, 10}}
	extra := &extraBuffer{offset: 1000}
	require.NoError(t, writeEntry(s, 256, v, false, extra))

	_, err := s.Seek(0, 0)
	require.NoError(t, err)
	tag, typ, count, raw, err := readRawEntry(s, false)
	require.NoError(t, err)
	require.Equal(t, uint16(256), tag)
	require.Equal(t, TLong, typ)
	require.Equal(t, uint64(4), count)
	require.Len(t, raw, 4)
}
