package graph

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

// Opcodes with meaning to this package or to the stock legalization
// policies. Nothing stops a caller from using other opcodes.
const (
	OpParameter  = "parameter"
	OpConst      = "const"
	OpReturn     = "return"
	OpCast       = "cast"
	OpQuantize   = "quantize"
	OpDequantize = "dequantize"
)

// Parameter adds a graph input with the given name and type.
func (g *Graph) Parameter(name string, t Type) *Node {
	return g.NewNamedNode(name, OpParameter, []Type{t})
}

// Const adds a constant node. The data is stored as the "value"
// attribute; this package does not interpret it.
func (g *Graph) Const(name string, t Type, data any) *Node {
	n := g.NewNamedNode(name, OpConst, []Type{t})
	n.SetAttr("value", data)
	return n
}

// Return marks v as a graph output under the given name. Outputs are
// ordinary nodes, so a pass that redirects the consumers of a value
// updates the returned value like any other use.
func (g *Graph) Return(name string, v NodeValue) *Node {
	return g.NewNamedNode(name, OpReturn, nil, v)
}

// binaryOp adds an elementwise binary operation whose output takes the
// type of x.
func (g *Graph) binaryOp(op string, x, y NodeValue) *Node {
	return g.NewNode(op, []Type{x.Type()}, x, y)
}

// Add adds an elementwise addition.
func (g *Graph) Add(x, y NodeValue) *Node {
	return g.binaryOp("add", x, y)
}

// Sub adds an elementwise subtraction.
func (g *Graph) Sub(x, y NodeValue) *Node {
	return g.binaryOp("sub", x, y)
}

// Mul adds an elementwise multiplication.
func (g *Graph) Mul(x, y NodeValue) *Node {
	return g.binaryOp("mul", x, y)
}

// MatMul adds a matrix multiplication of x ([..., m, k]) and
// y ([..., k, n]).
func (g *Graph) MatMul(x, y NodeValue) *Node {
	xDims := x.Type().Dimensions()
	yDims := y.Type().Dimensions()
	dims := make([]int, 0, len(xDims))
	dims = append(dims, xDims[:len(xDims)-1]...)
	dims = append(dims, yDims[len(yDims)-1])
	return g.NewNode("matmul", []Type{MakeType(x.Type().DType(), dims...)}, x, y)
}

// Relu adds a rectified linear activation.
func (g *Graph) Relu(x NodeValue) *Node {
	return g.NewNode("relu", []Type{x.Type()}, x)
}

// Identity adds an identity operation that copies a value under a new
// name.
func (g *Graph) Identity(name string, x NodeValue) *Node {
	return g.NewNamedNode(name, "identity", []Type{x.Type()}, x)
}

// Cast adds a dtype conversion of x to dtype, keeping its dimensions.
// The destination dtype is recorded as the "dtype" attribute, like the
// MIL cast operation's dtype parameter.
func (g *Graph) Cast(x NodeValue, dtype dtypes.DType) *Node {
	n := g.NewNode(OpCast, []Type{x.Type().WithDType(dtype)}, x)
	n.SetAttr("dtype", dtypeName(dtype))
	return n
}

// Quantize adds a quantization of the float value x to the quantized
// integer type t. Scale and zero point are recorded as attributes.
func (g *Graph) Quantize(x NodeValue, t Type) *Node {
	n := g.NewNode(OpQuantize, []Type{t}, x)
	n.SetAttr("scale", t.Quant.Scale)
	n.SetAttr("zero_point", t.Quant.ZeroPoint)
	return n
}

// Dequantize adds a dequantization of the quantized value x to the
// float type t.
func (g *Graph) Dequantize(x NodeValue, t Type) *Node {
	src := x.Type()
	n := g.NewNode(OpDequantize, []Type{t}, x)
	n.SetAttr("scale", src.Quant.Scale)
	n.SetAttr("zero_point", src.Quant.ZeroPoint)
	return n
}
