package tiffcore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultReaderConfigMatchesDocumentedDefaults(t *testing.T) {
	c := DefaultReaderConfig()
	require.True(t, c.InterleaveResults)
	require.True(t, c.AutoCorrectInvertedBrightness)
	require.True(t, c.CropTilesToImageBoundaries)
	require.True(t, c.CachingIFDs)
	require.False(t, c.MissingTilesAllowed)
	require.False(t, c.RequireValidTIFF)
	require.IsType(t, NopLogger{}, c.Logger)
}

func TestWithReaderLoggerRejectsNil(t *testing.T) {
	c := DefaultReaderConfig()
	err := WithReaderLogger(nil)(&c)
	require.Error(t, err)
	var optErr ErrInvalidOption
	require.ErrorAs(t, err, &optErr)
}

func TestWithMissingTilesAllowedAndByteFiller(t *testing.T) {
	c := DefaultReaderConfig()
	require.NoError(t, WithMissingTilesAllowed(true)(&c))
	require.NoError(t, WithByteFiller(0x42)(&c))
	require.True(t, c.MissingTilesAllowed)
	require.Equal(t, byte(0x42), c.ByteFiller)
}

func TestDefaultWriterConfigMatchesDocumentedDefaults(t *testing.T) {
	c := DefaultWriterConfig()
	require.Equal(t, binary.BigEndian, c.ByteOrder)
	require.False(t, c.BigTIFF)
	require.True(t, c.WritingForwardAllowed)
	require.True(t, c.SmartIFDCorrection)
	require.Equal(t, 75, c.Quality)
}

func TestWithByteOrderRejectsNonStandardOrder(t *testing.T) {
	c := DefaultWriterConfig()
	err := WithByteOrder(nil)(&c)
	require.Error(t, err)
}

func TestWithByteOrderAcceptsLittleEndian(t *testing.T) {
	c := DefaultWriterConfig()
	require.NoError(t, WithByteOrder(binary.LittleEndian)(&c))
	require.Equal(t, binary.LittleEndian, c.ByteOrder)
}

func TestWithQualityRejectsOutOfRange(t *testing.T) {
	c := DefaultWriterConfig()
	require.Error(t, WithQuality(0)(&c))
	require.Error(t, WithQuality(101)(&c))
	require.NoError(t, WithQuality(50)(&c))
	require.Equal(t, 50, c.Quality)
}

func TestWithWriterLoggerRejectsNil(t *testing.T) {
	c := DefaultWriterConfig()
	require.Error(t, WithWriterLogger(nil)(&c))
}
