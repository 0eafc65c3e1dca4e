package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/corpus"
)

func main() {
	var (
		textsDir = flag.String("texts", filepath.Join("data", "texts"), "Directory of author_year_title text files")
		out      = flag.String("out", filepath.Join("data", "metadata.csv"), "Metadata CSV to write")
	)
	flag.Parse()

	rows, err := corpus.MetadataFromFilenames(*textsDir)
	if err != nil {
		log.Fatalf("scan %s: %v", *textsDir, err)
	}
	if len(rows) == 0 {
		log.Printf("no files matching author_year_title.txt in %s", *textsDir)
		return
	}
	if err := corpus.WriteMetadata(*out, rows); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
}
