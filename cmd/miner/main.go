// Package main is a standalone stdin batch miner: one line in, one
// assigned template id out. It mirrors the acquisition shape of the
// original Elasticsearch-backed miner (pull lines from somewhere, insert
// each into a TemplateMap, report the template it landed in) but reads
// from stdin instead of a search index, so it can sit at the end of any
// shell pipeline.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/arolek/logmine/internal/config"
	"github.com/arolek/logmine/internal/logmine"
	"github.com/arolek/logmine/pkg/lcsminer"
)

func main() {
	var (
		snapshotPath = flag.String("snapshot", "", "path to write the mined TemplateMap to on exit (gob, see pkg/lcsminer.Save)")
		loadPath     = flag.String("load", "", "path to a previously saved TemplateMap to resume from")
		maskPath     = flag.String("patterns", "", "YAML pre-masking pattern file (see internal/config); empty disables pre-masking")
		quiet        = flag.Bool("quiet", false, "suppress per-line template id output, print only a final summary")
	)
	flag.Parse()

	var patterns []config.CompiledPattern
	if *maskPath != "" {
		loaded, err := config.LoadPatterns(*maskPath)
		if err != nil {
			log.Fatalf("loading patterns: %v", err)
		}
		patterns = loaded
	}

	var tm *lcsminer.TemplateMap
	if *loadPath != "" {
		loaded, err := lcsminer.Load(*loadPath)
		if err != nil {
			log.Fatalf("loading template map from %s: %v", *loadPath, err)
		}
		tm = loaded
	} else {
		tm = lcsminer.NewTemplateMap(logmine.DefaultTokenizer)
	}

	premask := func(line string) string {
		for _, p := range patterns {
			line = p.Regex.ReplaceAllString(line, p.Placeholder)
		}
		return line
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines int
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tpl := tm.Insert(premask(line))
		lines++
		if !*quiet {
			fmt.Printf("%d\t%d\n", lines, tpl.ID())
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("reading stdin: %v", err)
	}

	log.Printf("mined %d line(s) into %d template(s)", lines, tm.Len())

	if *snapshotPath != "" {
		if err := lcsminer.Save(*snapshotPath, tm); err != nil {
			log.Fatalf("saving template map to %s: %v", *snapshotPath, err)
		}
		log.Printf("wrote template map to %s", *snapshotPath)
	}
}
