// Package quant provides a legalization policy that converts selected
// float operations to quantized integer arithmetic, inserting explicit
// quantize and dequantize nodes at the float/integer boundary.
//
// Quantization parameters are supplied per value by the caller: a
// ParamsFor lookup maps a value to its (scale, zero point) pair.
// Values the lookup declines stay float, so a policy can quantize only
// the tensors it has calibration data for.
package quant

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/milgraph/graph"
	"github.com/gomlx/milgraph/legalize"
	"github.com/pkg/errors"
)

// Params is the per-tensor quantization parameter pair.
type Params = graph.QuantParams

// Policy converts the inputs and outputs of the opcodes listed in Ops
// from float32 to quantized integers.
type Policy struct {
	legalize.BasePolicy

	// Ops is the allowlist of opcodes to quantize.
	Ops map[string]bool

	// ParamsFor returns the quantization parameters for a value, or
	// false to leave it float.
	ParamsFor func(v graph.NodeValue) (Params, bool)

	// DType is the quantized storage dtype; defaults to Int8.
	DType dtypes.DType

	// Rename maps opcodes to their quantized variants, applied by
	// the morph hook once a node's types have converged, e.g.
	// {"matmul": "quantized_matmul"}.
	Rename map[string]string
}

var _ legalize.Policy = (*Policy)(nil)

func (p *Policy) dtype() dtypes.DType {
	if p.DType == dtypes.InvalidDType {
		return dtypes.Int8
	}
	return p.DType
}

// CanConvert accepts only the allowlisted opcodes.
func (p *Policy) CanConvert(n *graph.Node) bool {
	return p.Ops[n.Op()]
}

// TargetTypeForInput quantizes float32 inputs that have parameters.
func (p *Policy) TargetTypeForInput(n *graph.Node, i int) graph.Type {
	return p.quantized(n.Input(i))
}

// TargetTypeForOutput quantizes float32 outputs that have parameters.
func (p *Policy) TargetTypeForOutput(v graph.NodeValue) graph.Type {
	return p.quantized(v)
}

func (p *Policy) quantized(v graph.NodeValue) graph.Type {
	t := v.Type()
	if t.Quantized || t.DType() != dtypes.Float32 || p.ParamsFor == nil {
		return graph.Invalid()
	}
	params, ok := p.ParamsFor(v)
	if !ok {
		return graph.Invalid()
	}
	return graph.MakeQuantized(p.dtype(), params, t.Dimensions()...)
}

// CreateConversion emits a quantize or dequantize node depending on
// the direction implied by the source and destination types. A
// conversion with no defined direction (float to float, quantized to
// quantized) is a hard failure that aborts the pass.
func (p *Policy) CreateConversion(g *graph.Graph, v graph.NodeValue, destType graph.Type) (*graph.Node, error) {
	src := v.Type()
	switch {
	case !src.Quantized && destType.Quantized:
		return g.Quantize(v, destType), nil
	case src.Quantized && !destType.Quantized:
		return g.Dequantize(v, destType), nil
	}
	return nil, errors.Errorf("no quantization conversion from %s to %s", src, destType)
}

// MorphNode swaps the node to its quantized variant opcode, if one is
// configured.
func (p *Policy) MorphNode(_ *graph.Graph, n *graph.Node) *graph.Node {
	if renamed, ok := p.Rename[n.Op()]; ok {
		n.SetOp(renamed)
	}
	return n
}
