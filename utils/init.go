package utils

import (
	"flag"
	"fmt"
	"log"
	"strings"
)

type options struct {
	function     string
	outputFormat string
	task         string
	noColorize   bool
	verbose      bool
	visualize    bool
	noAbort      bool
}

const (
	_CHECK = iota
	_LOCATIONS
	_DATAFLOW
	_CFG_TO_DOT
)

func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	if opts.noColorize {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

var task = []struct{ flag, explanation string }{{
	"check",
	"Verify the memory lifetime of every function in the module",
}, {
	"locations",
	"Print the memory location table of the targeted functions",
}, {
	"dataflow",
	"Print the solved per-block dataflow sets of the targeted functions",
}, {
	"cfg-to-dot",
	"Create a graph for the control-flow graph, annotated with dataflow sets",
}}

var opts = &options{}

type optInterface struct{}

type taskInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}
func (optInterface) Function() string {
	return opts.function
}
func (optInterface) OutputFormat() string {
	return opts.outputFormat
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) Visualize() bool {
	return opts.visualize
}
func (optInterface) NoAbort() bool {
	return opts.noAbort
}
func (optInterface) Task() taskInterface {
	return taskInterface{}
}
func (taskInterface) IsCheck() bool {
	return opts.task == task[_CHECK].flag
}
func (taskInterface) IsLocations() bool {
	return opts.task == task[_LOCATIONS].flag
}
func (taskInterface) IsDataflow() bool {
	return opts.task == task[_DATAFLOW].flag
}
func (taskInterface) IsCfgToDot() bool {
	return opts.task == task[_CFG_TO_DOT].flag
}

func (optInterface) AnalyzeAllFuncs() bool {
	return opts.function == "."
}

func (optInterface) OnVerbose(do func()) {
	if Opts().Verbose() {
		do()
	}
}

func init() {
	taskFlag := "\n"
	for _, task := range task {
		taskFlag += task.flag + " -- " + task.explanation + "\n"
	}
	taskFlag += "\n"

	flag.StringVar(&(opts.function), "fun", ".", "target a specific function w. r. t. the given task.\n"+
		"Use '.' to run the task on all functions of the module.\n")
	flag.StringVar(&(opts.outputFormat), "format", "svg", "output file format [svg | png | jpg | ...]")
	flag.StringVar(&(opts.task), "task", task[_CHECK].flag, "Set the task to do during execution. Options:"+taskFlag)
	flag.BoolVar(&(opts.noColorize), "no-colorize", false, "Disable pretty printer colorization")
	flag.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	flag.BoolVar(&(opts.visualize), "visualize", false, "enable visualization via XDot")
	flag.BoolVar(&(opts.noAbort), "no-abort", false, "collect lifetime failures instead of aborting on the first one")

	// Set up logging
	log.SetFlags(log.Ltime | log.Lshortfile)
}

func ParseArgs() {
	// Calling flag.Parse in init messes up unit tests.
	// See https://stackoverflow.com/questions/60235896/flag-provided-but-not-defined-test-v
	flag.Parse()

	validTask := false
	for _, task := range task {
		if task.flag == opts.task {
			validTask = true
			break
		}
	}

	if !validTask {
		log.Fatalf("Value \"%s\" is not valid for -task", opts.task)
	}

	if Opts().Task().IsCfgToDot() {
		opts.noColorize = true
	}
}
