package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/silt-dev/silt/analysis/dataflow"
	"github.com/silt-dev/silt/analysis/lifetime"
	"github.com/silt-dev/silt/analysis/location"
	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils"

	"github.com/fatih/color"
)

var (
	opts = utils.Opts()
	task = opts.Task()
)

func main() {
	utils.ParseArgs()

	if flag.NArg() == 0 {
		log.Fatalln("No input files given")
	}

	var funs []*mir.Function
	for _, path := range flag.Args() {
		m, err := loadModule(path)
		if err != nil {
			log.Println("Failed to load", path)
			log.Println(err)
			os.Exit(1)
		}
		for _, fn := range m.Funcs {
			if opts.AnalyzeAllFuncs() || fn.Name() == opts.Function() {
				funs = append(funs, fn)
			}
		}
	}

	if len(funs) == 0 {
		log.Fatalf("No function %q found in the given modules", opts.Function())
	}

	switch {
	case task.IsCheck():
		defer utils.TimeTrack(time.Now(), "lifetime check")
		conf := lifetime.Config{ReportAll: opts.NoAbort()}

		failed := 0
		for _, fn := range funs {
			utils.VerbosePrint("verifying @%s\n", fn.Name())
			// Aborts here unless -no-abort was given.
			if failures := lifetime.Verify(fn, conf); len(failures) > 0 {
				failed++
			}
		}

		if failed > 0 {
			log.Println(color.RedString("Lifetime check failed for %d of %d functions", failed, len(funs)))
			os.Exit(1)
		}
		log.Println(color.GreenString("Lifetime check passed for all %d functions", len(funs)))
	case task.IsLocations():
		for _, fn := range funs {
			fmt.Printf("Memory locations of @%s:\n", fn.Name())
			fmt.Print(location.Analyze(fn))
			fmt.Println()
		}
	case task.IsDataflow():
		for _, fn := range funs {
			locs, df := lifetime.Solve(fn)
			if df == nil {
				fmt.Printf("@%s has no trackable locations\n\n", fn.Name())
				continue
			}

			fmt.Printf("Initialization dataflow of @%s (%d locations):\n", fn.Name(), locs.NumLocations())
			fmt.Print(df)
			fmt.Println()

			if opts.Visualize() {
				df.Visualize()
			}
		}
	case task.IsCfgToDot():
		for _, fn := range funs {
			if _, df := lifetime.Solve(fn); df != nil {
				df.Visualize()
			} else {
				dataflow.VisualizeFunction(fn)
			}
		}
	}
}

func loadModule(path string) (*mir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mir.ParseModule(f)
}
