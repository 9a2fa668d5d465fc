// Package milgraph provides a mutable, MIL-flavored typed dataflow
// graph and a generic type-legalization pass over it.
//
// # Architecture
//
// The module is organized into several sub-packages:
//
//   - graph: the mutable graph substrate (nodes, typed values, use
//     lists, positional insertion, in-place retyping)
//   - legalize: the generic legalization pass and its policy hooks
//   - precision: a policy lowering float32 arithmetic to float16
//   - quant: a policy quantizing selected ops to int8
//   - cmd/milgraph: a CLI that loads YAML graph descriptions, runs a
//     policy and prints the legalized graph
//
// # Usage
//
// Build a graph, pick a policy, run the pass:
//
//	g := graph.New("main")
//	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 3))
//	y := g.Parameter("y", graph.MakeType(dtypes.Float32, 3, 4))
//	r := g.MatMul(x.Output(0), y.Output(0))
//	g.Return("r", r.Output(0))
//
//	l := legalize.New(g, &precision.Policy{})
//	if err := l.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// The pass mutates the graph in place: it retypes outputs, inserts
// cast nodes at the float32 boundary and rewires consumers. Callers
// that need the original graph must build a disposable copy first.
package milgraph
