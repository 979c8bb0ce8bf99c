package tiffcore

import "fmt"

// Kind classifies the error taxonomy a Reader or Writer can return.
type Kind int

const (
	// KindHeaderInvalid marks a malformed TIFF/BigTIFF header.
	KindHeaderInvalid Kind = iota + 1
	// KindFormatCorrupt marks a structurally broken IFD or tile layout.
	KindFormatCorrupt
	// KindUnsupported marks a valid TIFF feature this core does not implement.
	KindUnsupported
	// KindCodec marks a codec dispatch or decompression failure.
	KindCodec
	// KindRangeError marks a request outside the bounds of the image or an array.
	KindRangeError
	// KindTooLargeImage marks a computed size exceeding this core's capacity limits.
	KindTooLargeImage
	// KindIoError marks a failure from the underlying byte stream.
	KindIoError
)

func (k Kind) String() string {
	switch k {
	case KindHeaderInvalid:
		return "HeaderInvalid"
	case KindFormatCorrupt:
		return "FormatCorrupt"
	case KindUnsupported:
		return "Unsupported"
	case KindCodec:
		return "Codec"
	case KindRangeError:
		return "RangeError"
	case KindTooLargeImage:
		return "TooLargeImage"
	case KindIoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every exported tiffcore operation.
// Op names the failing operation so a caller can log "reader.parseIFD:
// FormatCorrupt: ..." without re-deriving it from a stack trace.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, tiffcore.KindFormatCorrupt-style sentinels) by
// comparing Kind when the target is also an *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errHeaderInvalid(op string, err error) error   { return newErr(KindHeaderInvalid, op, err) }
func errFormatCorrupt(op string, err error) error   { return newErr(KindFormatCorrupt, op, err) }
func errUnsupported(op string, err error) error     { return newErr(KindUnsupported, op, err) }
func errCodec(op string, err error) error           { return newErr(KindCodec, op, err) }
func errRange(op string, err error) error           { return newErr(KindRangeError, op, err) }
func errTooLarge(op string, err error) error        { return newErr(KindTooLargeImage, op, err) }
func errIO(op string, err error) error              { return newErr(KindIoError, op, err) }

func errFormatCorruptf(op, format string, args ...interface{}) error {
	return newErr(KindFormatCorrupt, op, fmt.Errorf(format, args...))
}

func errUnsupportedf(op, format string, args ...interface{}) error {
	return newErr(KindUnsupported, op, fmt.Errorf(format, args...))
}

func errRangef(op, format string, args ...interface{}) error {
	return newErr(KindRangeError, op, fmt.Errorf(format, args...))
}

// ErrInvalidOption is returned by a ReaderOption/WriterOption constructor
// when given an out-of-range value.
type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}
