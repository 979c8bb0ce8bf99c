package tiffcore

import "bytes"

// CodecOptions carries the per-tile parameters a Codec may need beyond
// the raw bytes: the declared image shape (for codecs that must validate
// output size) and the IFD's JPEGTables, if any.
type CodecOptions struct {
	Width, Height   int
	SamplesPerPixel int
	BytesPerSample  int
	JPEGTables      []byte

	// Quality and PreferRGBForJPEG carry the WriterConfig/ReaderConfig
	// knobs of the same name through to whichever codec is registered
	// for the compression in use (e.g. an externally registered JPEG
	// codec); this core's built-in noneCodec ignores both.
	Quality          int
	PreferRGBForJPEG bool
}

// Codec compresses and decompresses one tile/strip's payload. Registered
// against a Compression tag value via RegisterCodec (spec.md §4.8).
type Codec interface {
	Decode(data []byte, opts CodecOptions) ([]byte, error)
	Encode(data []byte, opts CodecOptions) ([]byte, error)
}

var codecRegistry = map[uint16]Codec{
	CompressionNone: noneCodec{},
}

// RegisterCodec installs codec for compression, overriding any previous
// registration. This core ships only CompressionNone built in;
// LZW/Deflate/PackBits/JPEG codecs are an explicit Non-goal and must be
// registered by the caller (spec.md §1, §4.8).
func RegisterCodec(compression uint16, codec Codec) {
	codecRegistry[compression] = codec
}

// LookupCodec returns the codec registered for compression, or an
// Unsupported error if none was (spec.md §4.8).
func LookupCodec(compression uint16) (Codec, error) {
	c, ok := codecRegistry[compression]
	if !ok {
		return nil, errUnsupportedf("LookupCodec", "no codec registered for compression %d", compression)
	}
	return c, nil
}

// noneCodec is the identity codec for Compression=1.
type noneCodec struct{}

func (noneCodec) Decode(data []byte, _ CodecOptions) ([]byte, error) { return data, nil }
func (noneCodec) Encode(data []byte, _ CodecOptions) ([]byte, error) { return data, nil }

// SpliceJPEGTables combines a tile's abbreviated JPEG stream with the
// IFD's shared JPEGTables into one full JPEG stream a standard decoder
// can read, per spec.md §4.8: the tables carry their own SOI/EOI marker
// pair that must be stripped before splicing, and the tile data's
// leading SOI is kept as the combined stream's only SOI.
func SpliceJPEGTables(tile []byte, tables []byte) ([]byte, error) {
	if len(tables) == 0 {
		return tile, nil
	}
	if len(tile) < 2 || tile[0] != 0xFF || tile[1] != 0xD8 {
		return nil, errFormatCorruptf("SpliceJPEGTables", "tile data does not start with a JPEG SOI marker")
	}
	if len(tables) < 4 || tables[0] != 0xFF || tables[1] != 0xD8 {
		return nil, errFormatCorruptf("SpliceJPEGTables", "JPEGTables does not start with a JPEG SOI marker")
	}
	if tables[len(tables)-2] != 0xFF || tables[len(tables)-1] != 0xD9 {
		return nil, errFormatCorruptf("SpliceJPEGTables", "JPEGTables does not end with a JPEG EOI marker")
	}

	var out bytes.Buffer
	out.Write(tile[:2])            // SOI
	out.Write(tables[2 : len(tables)-2]) // tables' segments, sans SOI/EOI
	out.Write(tile[2:])            // tile's segments through its own EOI
	return out.Bytes(), nil
}
