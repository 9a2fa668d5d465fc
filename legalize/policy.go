package legalize

import (
	"github.com/gomlx/milgraph/graph"
	"github.com/pkg/errors"
)

// BasePolicy provides the default behavior for every Policy hook:
// every node is convertible, no value has a target type, conversions
// have one input and one output, and morphing is the identity.
//
// Embed it in a concrete policy and override what the policy needs.
// CreateConversion has no sensible default and must be overridden; the
// BasePolicy implementation fails, which aborts the run.
type BasePolicy struct{}

// CanConvert reports every node as eligible.
func (BasePolicy) CanConvert(*graph.Node) bool {
	return true
}

// TargetTypeForOutput requests no change for any output.
func (BasePolicy) TargetTypeForOutput(graph.NodeValue) graph.Type {
	return graph.Invalid()
}

// TargetTypeForInput requests no change for any input.
func (BasePolicy) TargetTypeForInput(*graph.Node, int) graph.Type {
	return graph.Invalid()
}

// CreateConversion fails: concrete policies must provide it.
func (BasePolicy) CreateConversion(_ *graph.Graph, v graph.NodeValue, destType graph.Type) (*graph.Node, error) {
	return nil, errors.Errorf("policy does not implement CreateConversion (wanted %s -> %s)",
		v.Type(), destType)
}

// ConversionEndpoints assumes a single-input, single-output conversion:
// destination is the type of result 0, source the type of operand 0.
func (BasePolicy) ConversionEndpoints(conversion *graph.Node) DstSrc {
	return DstSrc{Dst: conversion.OutputType(0), Src: conversion.Input(0).Type()}
}

// ConversionOutput returns result 0.
func (BasePolicy) ConversionOutput(conversion *graph.Node) graph.NodeValue {
	return conversion.Output(0)
}

// MorphNode returns the node unchanged.
func (BasePolicy) MorphNode(_ *graph.Graph, n *graph.Node) *graph.Node {
	return n
}

// PostProcess does nothing.
func (BasePolicy) PostProcess(*graph.Graph, *graph.Node) {}

// CleanUp does nothing.
func (BasePolicy) CleanUp(*graph.Graph) {}
