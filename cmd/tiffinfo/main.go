// Command tiffinfo dumps the IFD structure of a TIFF/BigTIFF file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aklaver/tiffcore"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <file.tif>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tiffinfo: %w", err)
	}
	defer f.Close()

	stream := tiffcore.NewFileStream(f)
	r, err := tiffcore.NewReader(stream)
	if err != nil {
		return fmt.Errorf("tiffinfo: %w", err)
	}

	ifds, err := r.IFDs()
	if err != nil {
		return fmt.Errorf("tiffinfo: %w", err)
	}

	kind := "TIFF"
	if r.BigTIFF() {
		kind = "BigTIFF"
	}
	fmt.Printf("%s: %d IFD(s)\n", kind, len(ifds))

	for i, ifd := range ifds {
		fmt.Printf("IFD %d:\n", i)
		fmt.Printf("  dimensions:   %dx%d\n", ifd.ImageWidth, ifd.ImageHeight)
		fmt.Printf("  samples:      %d @ %v bits\n", ifd.SamplesPerPixel, ifd.BitsPerSample)
		fmt.Printf("  compression:  %d\n", ifd.Compression)
		fmt.Printf("  photometric:  %d\n", ifd.Photometric)
		fmt.Printf("  planar:       %d\n", ifd.PlanarConfig)
		if ifd.IsTiled() {
			fmt.Printf("  tiles:        %dx%d, grid %dx%d\n", ifd.TileWidth, ifd.TileLength, ifd.NTilesX(), ifd.NTilesY())
		} else {
			fmt.Printf("  rows/strip:   %d, strips %d\n", ifd.RowsPerStrip, ifd.NTilesY())
		}
	}
	return nil
}
