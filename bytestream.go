package tiffcore

import (
	"bufio"
	"encoding/binary"
	"io"
)

// ByteStream is the seekable, byte-ordered collaborator Reader and
// Writer operate against. It is assumed to be supplied by the caller
// (spec.md treats byte-level random-access I/O as an external
// collaborator, not something this core implements against a specific
// backing store).
type ByteStream interface {
	io.ReaderAt

	// Seek repositions the stream, following io.Seeker semantics.
	Seek(offset int64, whence int) (int64, error)
	// Offset reports the current position.
	Offset() (int64, error)
	// Length reports the total size of the stream.
	Length() (int64, error)
	// SetLength truncates or extends the stream to exactly n bytes.
	SetLength(n int64) error

	// SetByteOrder fixes the order used by every subsequent typed
	// read/write. TIFF byte order is file-global and, once the header
	// is written, must not change.
	SetByteOrder(order binary.ByteOrder)
	ByteOrder() binary.ByteOrder

	ReadU8() (uint8, error)
	ReadI8() (int8, error)
	ReadU16() (uint16, error)
	ReadU32() (uint32, error)
	ReadI32() (int32, error)
	ReadU64() (uint64, error)
	ReadI64() (int64, error)
	ReadF32() (float32, error)
	ReadF64() (float64, error)
	ReadExact(buf []byte) error

	WriteU8(v uint8) error
	WriteI8(v int8) error
	WriteU16(v uint16) error
	WriteU32(v uint32) error
	WriteI32(v int32) error
	WriteU64(v uint64) error
	WriteI64(v int64) error
	WriteF32(v float32) error
	WriteF64(v float64) error
	WriteExact(buf []byte) error
}

// truncater is implemented by most real files (os.File) and lets
// FileStream honor SetLength without requiring the caller to pass a
// dedicated truncation collaborator.
type truncater interface {
	Truncate(size int64) error
}

// FileStream is a buffered ByteStream over an io.ReadWriteSeeker. Large
// ranges (e.g. a tile offsets array) should still be read with a single
// ReadExact and decoded in memory by the caller, per spec.md §4.1.
type FileStream struct {
	rw    io.ReadWriteSeeker
	order binary.ByteOrder
	r     *bufio.Reader
}

// NewFileStream wraps rw for buffered, byte-ordered access. order may be
// changed later with SetByteOrder; it defaults to big-endian to match
// classic-TIFF's historical default.
func NewFileStream(rw io.ReadWriteSeeker) *FileStream {
	return &FileStream{rw: rw, order: binary.BigEndian, r: bufio.NewReader(rw)}
}

func (f *FileStream) ByteOrder() binary.ByteOrder        { return f.order }
func (f *FileStream) SetByteOrder(order binary.ByteOrder) { f.order = order }

func (f *FileStream) Seek(offset int64, whence int) (int64, error) {
	n, err := f.rw.Seek(offset, whence)
	if err != nil {
		return n, err
	}
	f.r.Reset(f.rw)
	return n, nil
}

func (f *FileStream) Offset() (int64, error) {
	pos, err := f.rw.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return pos - int64(f.r.Buffered()), nil
}

func (f *FileStream) Length() (int64, error) {
	cur, err := f.rw.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := f.rw.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

func (f *FileStream) SetLength(n int64) error {
	t, ok := f.rw.(truncater)
	if !ok {
		return errIO("FileStream.SetLength", io.ErrClosedPipe)
	}
	return t.Truncate(n)
}

// ReadAt satisfies io.ReaderAt without disturbing the buffered sequential
// cursor, used by Reader to fetch tile payloads and out-of-line tag
// values at an arbitrary offset.
func (f *FileStream) ReadAt(p []byte, off int64) (int, error) {
	ra, ok := f.rw.(io.ReaderAt)
	if !ok {
		cur, err := f.Offset()
		if err != nil {
			return 0, err
		}
		defer f.Seek(cur, io.SeekStart)
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
		return io.ReadFull(f.r, p)
	}
	return ra.ReadAt(p, off)
}

func (f *FileStream) ReadExact(buf []byte) error {
	_, err := io.ReadFull(f.r, buf)
	return err
}

func (f *FileStream) WriteExact(buf []byte) error {
	_, err := f.rw.Write(buf)
	return err
}

func (f *FileStream) ReadU8() (uint8, error) {
	var b [1]byte
	if err := f.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f *FileStream) ReadI8() (int8, error) {
	v, err := f.ReadU8()
	return int8(v), err
}

func (f *FileStream) ReadU16() (uint16, error) {
	var b [2]byte
	if err := f.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return f.order.Uint16(b[:]), nil
}

func (f *FileStream) ReadU32() (uint32, error) {
	var b [4]byte
	if err := f.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return f.order.Uint32(b[:]), nil
}

func (f *FileStream) ReadI32() (int32, error) {
	v, err := f.ReadU32()
	return int32(v), err
}

func (f *FileStream) ReadU64() (uint64, error) {
	var b [8]byte
	if err := f.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return f.order.Uint64(b[:]), nil
}

func (f *FileStream) ReadI64() (int64, error) {
	v, err := f.ReadU64()
	return int64(v), err
}

func (f *FileStream) ReadF32() (float32, error) {
	v, err := f.ReadU32()
	if err != nil {
		return 0, err
	}
	return float32FromBits(v), nil
}

func (f *FileStream) ReadF64() (float64, error) {
	v, err := f.ReadU64()
	if err != nil {
		return 0, err
	}
	return float64FromBits(v), nil
}

func (f *FileStream) WriteU8(v uint8) error {
	return f.WriteExact([]byte{v})
}

func (f *FileStream) WriteI8(v int8) error {
	return f.WriteU8(uint8(v))
}

func (f *FileStream) WriteU16(v uint16) error {
	var b [2]byte
	f.order.PutUint16(b[:], v)
	return f.WriteExact(b[:])
}

func (f *FileStream) WriteU32(v uint32) error {
	var b [4]byte
	f.order.PutUint32(b[:], v)
	return f.WriteExact(b[:])
}

func (f *FileStream) WriteI32(v int32) error {
	return f.WriteU32(uint32(v))
}

func (f *FileStream) WriteU64(v uint64) error {
	var b [8]byte
	f.order.PutUint64(b[:], v)
	return f.WriteExact(b[:])
}

func (f *FileStream) WriteI64(v int64) error {
	return f.WriteU64(uint64(v))
}

func (f *FileStream) WriteF32(v float32) error {
	return f.WriteU32(float32Bits(v))
}

func (f *FileStream) WriteF64(v float64) error {
	return f.WriteU64(float64Bits(v))
}
