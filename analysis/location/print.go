package location

import (
	"fmt"
	"strings"

	"github.com/silt-dev/silt/utils"

	"github.com/fatih/color"
)

// colorize is used for pretty-printing.
var colorize = struct {
	Index func(...interface{}) string
	Bits  func(...interface{}) string
	Site  func(...interface{}) string
	Attr  func(...interface{}) string
}{
	Index: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
	},
	Bits: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
	Site: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
	},
	Attr: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
}

func (l *Location) String() string {
	return fmt.Sprintf("sublocs=%s, parent=%s, parentbits=%s: %s",
		colorize.Bits(l.SubLocations),
		colorize.Index(l.ParentIdx),
		colorize.Bits(l.SelfAndParents),
		colorize.Site(l.Rep))
}

// String renders the location table, one line per location.
func (ls *Locations) String() string {
	var sb strings.Builder
	for idx := range ls.locs {
		fmt.Fprintf(&sb, "location #%s: %s\n", colorize.Index(idx), ls.locs[idx].String())
	}
	return sb.String()
}
