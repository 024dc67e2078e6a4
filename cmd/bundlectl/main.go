package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/atlasctl/internal/bundle"
	"github.com/danmuck/atlasctl/internal/observability"
)

func main() {
	manifest := flag.Bool("manifest", false, "create or complete manifest.json for the images in -input")
	build := flag.Bool("build", false, "build the static bundle from generator output in -input")
	input := flag.String("input", "", "input directory (images for -manifest, generator output for -build)")
	output := flag.String("output", "output_static", "bundle output directory for -build")
	flag.Parse()

	observability.InitLogger("bundlectl")
	if *manifest == *build {
		fail(fmt.Errorf("exactly one of -manifest or -build is required"))
	}
	if *input == "" {
		fail(fmt.Errorf("-input is required"))
	}

	var (
		result any
		err    error
	)
	switch {
	case *manifest:
		result, err = bundle.UpdateManifest(*input)
	case *build:
		result, err = bundle.Build(*input, *output)
	}
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "bundlectl: %v\n", err)
	os.Exit(1)
}
