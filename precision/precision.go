// Package precision provides a legalization policy that lowers the
// floating-point precision of a graph, by default float32 to float16.
//
// Arithmetic nodes are retyped to the target dtype with cast nodes
// inserted at the boundaries, so the graph's parameters and returned
// values keep their original types:
//
//	r = matmul(a, b)            // float32
//
// becomes
//
//	a16 = cast(a)               // float16
//	b16 = cast(b)               // float16
//	r   = matmul(a16, b16)      // float16
//	r32 = cast(r)               // float32, read by r's old consumers
package precision

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/milgraph/graph"
	"github.com/gomlx/milgraph/legalize"
	"github.com/pkg/errors"
)

// Policy lowers values of dtype From to dtype To. The zero value
// lowers float32 to float16.
type Policy struct {
	legalize.BasePolicy

	// From and To default to Float32 and Float16.
	From dtypes.DType
	To   dtypes.DType

	// Skip lists opcodes to leave untouched, in addition to the
	// built-in boundary opcodes (parameter, const, return, cast).
	Skip map[string]bool
}

var _ legalize.Policy = (*Policy)(nil)

// boundaryOps are never retyped: parameters, constants and returns pin
// the graph's external types, and cast is the conversion opcode itself,
// which keeps a second run of the pass a no-op.
var boundaryOps = map[string]bool{
	graph.OpParameter: true,
	graph.OpConst:     true,
	graph.OpReturn:    true,
	graph.OpCast:      true,
}

func (p *Policy) from() dtypes.DType {
	if p.From == dtypes.InvalidDType {
		return dtypes.Float32
	}
	return p.From
}

func (p *Policy) to() dtypes.DType {
	if p.To == dtypes.InvalidDType {
		return dtypes.Float16
	}
	return p.To
}

// CanConvert declines boundary opcodes and anything listed in Skip.
func (p *Policy) CanConvert(n *graph.Node) bool {
	return !boundaryOps[n.Op()] && !p.Skip[n.Op()]
}

// TargetTypeForInput lowers any From-typed input.
func (p *Policy) TargetTypeForInput(n *graph.Node, i int) graph.Type {
	return p.lowered(n.Input(i).Type())
}

// TargetTypeForOutput lowers any From-typed output.
func (p *Policy) TargetTypeForOutput(v graph.NodeValue) graph.Type {
	return p.lowered(v.Type())
}

// lowered maps a From-typed descriptor to its To-typed counterpart, or
// reports no change.
func (p *Policy) lowered(t graph.Type) graph.Type {
	if t.Quantized || t.DType() != p.from() {
		return graph.Invalid()
	}
	return t.WithDType(p.to())
}

// CreateConversion emits a cast node. Only plain (non-quantized)
// destination types are expressible as casts.
func (p *Policy) CreateConversion(g *graph.Graph, v graph.NodeValue, destType graph.Type) (*graph.Node, error) {
	if destType.Quantized {
		return nil, errors.Errorf("cannot cast %s to quantized type %s", v, destType)
	}
	return g.Cast(v, destType.DType()), nil
}
