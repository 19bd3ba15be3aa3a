package dataflow

import (
	"fmt"
	"strings"

	"github.com/silt-dev/silt/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Block func(...interface{}) string
	Bits  func(...interface{}) string
}{
	Block: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Bits: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
}

// String renders all per-block dataflow sets.
func (df *Dataflow) String() string {
	var sb strings.Builder
	df.ForEach(func(st *BlockState) {
		fmt.Fprintf(&sb, "%s:\n", colorize.Block(st.Block.Name()))
		fmt.Fprintf(&sb, "    entry: %s\n", colorize.Bits(st.EntrySet))
		fmt.Fprintf(&sb, "    gen:   %s\n", colorize.Bits(st.GenSet))
		fmt.Fprintf(&sb, "    kill:  %s\n", colorize.Bits(st.KillSet))
		fmt.Fprintf(&sb, "    exit:  %s\n", colorize.Bits(st.ExitSet))
	})
	return sb.String()
}
