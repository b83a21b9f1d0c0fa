package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

// Build informations, set through -ldflags at compile time.
var (
	GitCommit string
	GitTag    string
	BuildTime string
)

func main() {
	version := flag.Bool("version", false, "print the build informations and exit")
	flag.Parse()
	if *version {
		fmt.Fprintf(os.Stdout, "library-platform %s (commit %s, built %s)\n", GitTag, GitCommit, BuildTime)
		return
	}

	app, err := NewApp()
	if err != nil {
		log.Fatalf("library platform failed to start: %v", err)
	}
	if err = app.Run(); err != nil {
		log.Fatalf("library platform stopped with error, see the logs for details: %v", err)
	}
}
