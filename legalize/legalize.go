// Package legalize rewrites a graph so every node's input and output
// types satisfy a pluggable type policy, inserting explicit conversion
// nodes wherever the current and desired types differ.
//
// The pass is generic: it decides nothing about which types are
// desirable. A Policy supplies those decisions per value, plus the
// construction of concrete conversion nodes (a cast, a
// quantize/dequantize pair, ...). The Legalizer contributes the
// traversal, the capture-then-redirect handling of in-place output
// retyping, and a cache that bounds conversion nodes to at most one per
// (value, destination type) pair per run.
//
// Example usage:
//
//	l := legalize.New(g, &precision.Policy{})
//	if err := l.Run(); err != nil {
//	    return err
//	}
package legalize

import (
	"github.com/gomlx/milgraph/graph"
	"github.com/pkg/errors"
)

// DstSrc is the (destination, source) type pair of a conversion node:
// dst = convert(src).
type DstSrc struct {
	Dst, Src graph.Type
}

// Policy supplies the type decisions and conversion construction for
// one legalization run. Embed BasePolicy to pick up defaults for
// everything except CreateConversion.
type Policy interface {
	// CanConvert gates whether a node participates in the pass at
	// all. A node it declines keeps its inputs, outputs and types
	// untouched.
	CanConvert(n *graph.Node) bool

	// TargetTypeForOutput returns the type the given output value
	// must have once the pass completes, or the invalid Type for "no
	// change". The pass retypes the output in place and converts
	// back to the original type for existing consumers.
	TargetTypeForOutput(v graph.NodeValue) graph.Type

	// TargetTypeForInput returns the type input slot i of n must
	// have once the pass completes, or the invalid Type for "no
	// change". The pass inserts a conversion of the incoming value.
	TargetTypeForInput(n *graph.Node, i int) graph.Type

	// CreateConversion builds a node converting v to destType and
	// adds it to g; the Legalizer positions it. This is the only
	// hook that may fail, and its failure aborts the run: skipping
	// a conversion would leave the graph ill-typed.
	CreateConversion(g *graph.Graph, v graph.NodeValue, destType graph.Type) (*graph.Node, error)

	// ConversionEndpoints extracts the (dst, src) type pair of a
	// conversion node built by CreateConversion.
	ConversionEndpoints(conversion *graph.Node) DstSrc

	// ConversionOutput returns the value a conversion node produces,
	// used to rewire consumers.
	ConversionOutput(conversion *graph.Node) graph.NodeValue

	// MorphNode rewrites n after all its inputs and outputs match
	// their target types, e.g. to swap its opcode. It must not
	// delete n; it may return a different node for bookkeeping.
	MorphNode(g *graph.Graph, n *graph.Node) *graph.Node

	// PostProcess runs after MorphNode with the morphed node.
	PostProcess(g *graph.Graph, n *graph.Node)

	// CleanUp runs once after every node has been processed.
	CleanUp(g *graph.Graph)
}

// cacheEntry records one conversion inserted during the current run,
// keyed by its source value and destination type.
type cacheEntry struct {
	src  graph.NodeValue
	dst  graph.Type
	conv *graph.Node
}

// Legalizer runs the type-legalization pass over one graph. It is
// bound to the graph and policy at construction and mutates the graph
// in place; callers that need the original must clone it first.
//
// A Legalizer may be run repeatedly; each run starts with an empty
// conversion cache. A second run is a no-op only if the policy reports
// "no change" against already-converted types, which is the policy's
// contract to uphold, not something the Legalizer enforces.
type Legalizer struct {
	g      *graph.Graph
	policy Policy
	cache  []cacheEntry
}

// New creates a Legalizer for g driven by policy.
func New(g *graph.Graph, policy Policy) *Legalizer {
	return &Legalizer{g: g, policy: policy}
}

// Conversions returns the conversion nodes inserted by the most recent
// Run, in insertion order.
func (l *Legalizer) Conversions() []*graph.Node {
	out := make([]*graph.Node, len(l.cache))
	for i, e := range l.cache {
		out[i] = e.conv
	}
	return out
}

// Run walks the graph once and makes every eligible node's input and
// output types satisfy the policy.
//
// Iteration is over a snapshot of the node list taken before any
// mutation, so conversion nodes inserted along the way are never
// themselves revisited. Per node: inputs are converted first (reusing
// cached conversions), then each output whose target type differs is
// retyped in place, with the consumers captured beforehand redirected
// through a conversion back to the original type. A redirected
// consumer processed later that itself wants the new type is wired
// back to the retyped value directly, so no value is converted away
// from its type and back again.
//
// On error the graph is left partially converted; no rollback is
// attempted.
func (l *Legalizer) Run() error {
	l.cache = l.cache[:0]
	snapshot := l.g.Nodes()
	for _, n := range snapshot {
		if !l.policy.CanConvert(n) {
			continue
		}
		if err := l.convertInputs(n); err != nil {
			return err
		}
		if err := l.convertOutputs(n); err != nil {
			return err
		}
		morphed := l.policy.MorphNode(l.g, n)
		l.policy.PostProcess(l.g, morphed)
	}
	l.policy.CleanUp(l.g)
	return nil
}

// convertInputs routes every input of n whose target type differs from
// its current type through a conversion node inserted before n.
func (l *Legalizer) convertInputs(n *graph.Node) error {
	for i := 0; i < n.NumInputs(); i++ {
		want := l.policy.TargetTypeForInput(n, i)
		v := n.Input(i)
		if !want.Ok() || want.Equal(v.Type()) {
			continue
		}
		// If v is itself a conversion inserted this run and its
		// source already carries the wanted type (the producer was
		// retyped in place and n was redirected through the
		// back-conversion), read the source directly rather than
		// stacking a second conversion on top.
		if src, ok := l.unconverted(v, want); ok {
			l.g.SetInput(n, i, src)
			continue
		}
		conv, err := l.conversionOf(v, want, n, true)
		if err != nil {
			return err
		}
		l.g.SetInput(n, i, l.policy.ConversionOutput(conv))
	}
	return nil
}

// unconverted checks whether v is the output of a conversion inserted
// during this run whose source value already has type dst, and if so
// returns that source.
func (l *Legalizer) unconverted(v graph.NodeValue, dst graph.Type) (graph.NodeValue, bool) {
	for _, e := range l.cache {
		if e.conv != v.Node() || l.policy.ConversionOutput(e.conv) != v {
			continue
		}
		if l.policy.ConversionEndpoints(e.conv).Src.Equal(dst) {
			return e.src, true
		}
	}
	return graph.NodeValue{}, false
}

// convertOutputs retypes every output of n whose target type differs,
// inserting a conversion back to the original type after n and
// redirecting the consumers that existed before the retype.
func (l *Legalizer) convertOutputs(n *graph.Node) error {
	for o := 0; o < n.NumOutputs(); o++ {
		v := n.Output(o)
		want := l.policy.TargetTypeForOutput(v)
		current := v.Type()
		if !want.Ok() || want.Equal(current) {
			continue
		}
		// Capture the consumer set before mutating: after the
		// retype they expect the old type and must be rerouted.
		users := l.g.Users(v)
		l.g.RetypeOutput(n, o, want)
		conv, err := l.conversionOf(v, current, n, false)
		if err != nil {
			return err
		}
		out := l.policy.ConversionOutput(conv)
		for _, u := range users {
			if u.Node == conv {
				continue
			}
			l.g.SetInput(u.Node, u.Index, out)
		}
	}
	return nil
}

// conversionOf returns a conversion of v to dst, reusing a conversion
// with the same source and destination inserted earlier in this run.
// New conversions are positioned immediately before (or after) anchor
// and appended to the cache.
func (l *Legalizer) conversionOf(v graph.NodeValue, dst graph.Type, anchor *graph.Node, before bool) (*graph.Node, error) {
	for _, e := range l.cache {
		if e.src == v && e.dst.Equal(dst) {
			return e.conv, nil
		}
	}
	conv, err := l.policy.CreateConversion(l.g, v, dst)
	if err != nil {
		return nil, errors.Wrapf(err, "create conversion of %s from %s to %s",
			v, v.Type(), dst)
	}
	if before {
		l.g.MoveBefore(conv, anchor)
	} else {
		l.g.MoveAfter(conv, anchor)
	}
	l.cache = append(l.cache, cacheEntry{src: v, dst: dst, conv: conv})
	return conv, nil
}
