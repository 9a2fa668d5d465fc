package graph

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// QuantParams holds per-tensor quantization parameters for quantized
// integer types: real = (quantized - ZeroPoint) * Scale.
type QuantParams struct {
	Scale     float64
	ZeroPoint int32
}

// Type describes the value carried by one output slot of a node: the
// element dtype and dimensions, plus quantization parameters when the
// dtype is a quantized integer.
//
// The zero value is invalid and doubles as the "no type" sentinel:
// hooks that have no target type to report return Invalid().
type Type struct {
	Shape shapes.Shape

	// Quantized marks Quant as meaningful. A float32 tensor and an
	// int8 tensor quantized from it have different Types even when
	// their dimensions agree.
	Quantized bool
	Quant     QuantParams
}

// MakeType returns a Type with the given dtype and dimensions.
func MakeType(dtype dtypes.DType, dims ...int) Type {
	return Type{Shape: shapes.Make(dtype, dims...)}
}

// MakeQuantized returns a quantized Type with the given storage dtype,
// quantization parameters and dimensions.
func MakeQuantized(dtype dtypes.DType, params QuantParams, dims ...int) Type {
	return Type{Shape: shapes.Make(dtype, dims...), Quantized: true, Quant: params}
}

// Invalid returns the "no type" sentinel.
func Invalid() Type {
	return Type{Shape: shapes.Invalid()}
}

// Ok reports whether t describes an actual type.
func (t Type) Ok() bool {
	return t.Shape.Ok()
}

// DType returns the element dtype.
func (t Type) DType() dtypes.DType {
	return t.Shape.DType
}

// Dimensions returns the dimensions of the type's shape.
// The returned slice is owned by the Type and must not be mutated.
func (t Type) Dimensions() []int {
	return t.Shape.Dimensions
}

// WithDType returns a copy of t with the element dtype replaced and any
// quantization parameters cleared.
func (t Type) WithDType(dtype dtypes.DType) Type {
	return MakeType(dtype, t.Shape.Dimensions...)
}

// Equal reports structural equality: same dtype, same dimensions and,
// for quantized types, the same quantization parameters.
func (t Type) Equal(other Type) bool {
	if !t.Shape.Equal(other.Shape) {
		return false
	}
	if t.Quantized != other.Quantized {
		return false
	}
	return !t.Quantized || t.Quant == other.Quant
}

// String returns a compact form like "float32[2,3]" or
// "int8[2,3]q(s=0.5,z=10)".
func (t Type) String() string {
	if !t.Ok() {
		return "invalid"
	}
	s := dtypeName(t.Shape.DType) + dimsString(t.Shape.Dimensions)
	if t.Quantized {
		s += fmt.Sprintf("q(s=%g,z=%d)", t.Quant.Scale, t.Quant.ZeroPoint)
	}
	return s
}

func dimsString(dims []int) string {
	s := "["
	for i, d := range dims {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", d)
	}
	return s + "]"
}
