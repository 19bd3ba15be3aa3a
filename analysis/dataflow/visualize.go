package dataflow

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/silt-dev/silt/mir"
	"github.com/silt-dev/silt/utils"
	"github.com/silt-dev/silt/utils/dot"
)

var opts = utils.Opts()

// Visualize creates a Dot Graph of the function CFG, with every block
// annotated with its entry and exit bit vectors.
func (df *Dataflow) Visualize() {
	render(df.fn, df)
}

// VisualizeFunction creates a Dot Graph of the bare function CFG.
func VisualizeFunction(fn *mir.Function) {
	render(fn, nil)
}

// render shows the graph via xdot, or exports it to an image file in the
// configured output format.
func render(fn *mir.Function, df *Dataflow) {
	G := &dot.DotGraph{
		Title: fn.Name(),
		Options: map[string]string{
			"rankdir": "TB",
		},
	}
	addFunctionToVisualizationGraph(G, fn, df)

	if opts.Visualize() {
		G.ShowDot()
		return
	}

	var buf bytes.Buffer
	if err := G.WriteDot(&buf); err != nil {
		log.Fatal(err)
	}
	out, err := dot.DotToImage("", opts.OutputFormat(), buf.Bytes())
	if err != nil {
		log.Fatal(err)
	}
	log.Println(out)
}

func addFunctionToVisualizationGraph(G *dot.DotGraph, fn *mir.Function, df *Dataflow) {
	cluster := dot.NewDotCluster(fn.Name())
	cluster.Attrs["label"] = "@" + fn.Name()
	cluster.Attrs["bgcolor"] = "#e6ffff"

	G.Clusters = append(G.Clusters, cluster)

	blockToDotNode := make(map[*mir.Block]*dot.DotNode)

	addEdge := func(from, to *mir.Block, attrs dot.DotAttrs) {
		G.Edges = append(G.Edges, &dot.DotEdge{
			From:  blockToDotNode[from],
			To:    blockToDotNode[to],
			Attrs: attrs,
		})
	}

	for _, blk := range fn.Blocks {
		dnode := &dot.DotNode{
			// Make node IDs unique across functions (every function has a "bb0").
			ID: fmt.Sprintf("%s-%s", fn.Name(), blk.Name()),
			Attrs: dot.DotAttrs{
				"label": blockLabel(blk, df),
			},
		}
		if df != nil && !df.State(blk).ReachableFromEntry {
			dnode.Attrs["fillcolor"] = "#d3d3d3"
		}

		cluster.Nodes = append(cluster.Nodes, dnode)
		blockToDotNode[blk] = dnode
	}

	for _, blk := range fn.Blocks {
		term := blk.Term()
		succs := term.Successors()
		for i, succ := range succs {
			var attrs dot.DotAttrs
			// The error edge of try_apply carries no out results.
			if _, isTry := term.(*mir.TryApply); isTry && i == 1 {
				attrs = dot.DotAttrs{
					"style": "dashed",
					"color": "red",
				}
			}
			addEdge(blk, succ, attrs)
		}
	}
}

func blockLabel(blk *mir.Block, df *Dataflow) string {
	var sb strings.Builder
	sb.WriteString(blk.Name())
	sb.WriteString(":")
	if df != nil {
		st := df.State(blk)
		fmt.Fprintf(&sb, "\nentry: %s  exit: %s", st.EntrySet.String(), st.ExitSet.String())
	}
	for _, instr := range blk.Instrs {
		sb.WriteString("\n  ")
		sb.WriteString(instr.String())
	}
	return sb.String()
}
