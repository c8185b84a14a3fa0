// Command docconv converts a document between the JSON and binary formats.
//
//	docconv -in state.json -out state.gob -to binary -compress zstd
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	misc "github.com/logicossoftware/go-misc"
)

func main() {
	var inPath, outPath, from, to, compress string
	var verbose bool
	flag.StringVar(&inPath, "in", "", "input document")
	flag.StringVar(&outPath, "out", "", "output document")
	flag.StringVar(&from, "from", "", "input format (json or binary); guessed from the extension if empty")
	flag.StringVar(&to, "to", "", "output format (json or binary); guessed from the extension if empty")
	flag.StringVar(&compress, "compress", "none", "binary compression: none, zip, zstd, lz4, brotli")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()
	if inPath == "" || outPath == "" {
		log.Fatal("-in and -out are required")
	}
	if verbose {
		misc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	inFormat, err := formatFor(from, inPath)
	if err != nil {
		log.Fatalf("input format: %v", err)
	}
	outFormat, err := formatFor(to, outPath)
	if err != nil {
		log.Fatalf("output format: %v", err)
	}
	comp, err := misc.ParseCompression(compress)
	if err != nil {
		log.Fatalf("compression: %v", err)
	}

	doc, err := misc.Load(inPath, inFormat)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	if err := misc.Save(outPath, doc, outFormat, misc.WithCompression(comp)); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("wrote %s (%s, %d keys)\n", outPath, outFormat, len(doc))
}

func formatFor(name, path string) (misc.Format, error) {
	if name != "" {
		return misc.ParseFormat(name)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return misc.FormatJSON, nil
	case ".gob", ".bin":
		return misc.FormatBinary, nil
	}
	return 0, fmt.Errorf("cannot guess format of %s; pass -from or -to", path)
}
