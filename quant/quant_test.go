package quant

import (
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"

	"github.com/gomlx/milgraph/graph"
	"github.com/gomlx/milgraph/legalize"
)

func uniformParams(params Params) func(graph.NodeValue) (Params, bool) {
	return func(graph.NodeValue) (Params, bool) {
		return params, true
	}
}

func TestQuantizeMatMul(t *testing.T) {
	g := graph.New("main")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 2))
	w := g.Parameter("w", graph.MakeType(dtypes.Float32, 2, 2))
	m := g.MatMul(x.Output(0), w.Output(0))
	ret := g.Return("r", m.Output(0))

	policy := &Policy{
		Ops:       map[string]bool{"matmul": true},
		ParamsFor: uniformParams(Params{Scale: 0.05, ZeroPoint: 0}),
		Rename:    map[string]string{"matmul": "quantized_matmul"},
	}
	l := legalize.New(g, policy)
	if err := l.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check() after run: %v", err)
	}

	// The morph hook swapped the opcode once the types converged.
	if got := m.Op(); got != "quantized_matmul" {
		t.Errorf("op = %q, want quantized_matmul", got)
	}

	// Operands arrive through quantize nodes.
	for i := 0; i < m.NumInputs(); i++ {
		in := m.Input(i)
		if in.Node().Op() != graph.OpQuantize {
			t.Errorf("input %d should come from a quantize node, got %s", i, in.Node().Op())
		}
		if !in.Type().Quantized {
			t.Errorf("input %d type = %s, want quantized", i, in.Type())
		}
		if got := in.Type().DType(); got != dtypes.Int8 {
			t.Errorf("input %d dtype = %s, want int8", i, got)
		}
	}

	// The output is natively quantized; the old consumer reads a
	// dequantize back to float32.
	out := m.OutputType(0)
	if !out.Quantized || out.Quant.Scale != 0.05 {
		t.Errorf("output type = %s, want int8 quantized with scale 0.05", out)
	}
	back := ret.Input(0)
	if back.Node().Op() != graph.OpDequantize {
		t.Fatalf("return should read a dequantize node, got %s", back.Node().Op())
	}
	if got := back.Type().DType(); got != dtypes.Float32 {
		t.Errorf("returned dtype = %s, want float32", got)
	}

	// Two quantizes plus one dequantize.
	if got := len(l.Conversions()); got != 3 {
		t.Errorf("Conversions() = %d, want 3", got)
	}
}

func TestSharedQuantize(t *testing.T) {
	g := graph.New("main")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 2))
	m1 := g.MatMul(x.Output(0), x.Output(0))
	m2 := g.MatMul(x.Output(0), x.Output(0))
	g.Return("a", m1.Output(0))
	g.Return("b", m2.Output(0))

	policy := &Policy{
		Ops:       map[string]bool{"matmul": true},
		ParamsFor: uniformParams(Params{Scale: 0.1}),
	}
	l := legalize.New(g, policy)
	if err := l.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// x is quantized once, shared by both operands of both matmuls.
	var quantizes int
	for _, conv := range l.Conversions() {
		if conv.Op() == graph.OpQuantize {
			quantizes++
		}
	}
	if quantizes != 1 {
		t.Errorf("quantize nodes = %d, want 1 shared", quantizes)
	}
	if m1.Input(0) != m2.Input(0) || m1.Input(1) != m1.Input(0) {
		t.Error("all operands should read the shared quantize node")
	}
}

func TestPerValueParams(t *testing.T) {
	g := graph.New("main")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 2))
	w := g.Parameter("w", graph.MakeType(dtypes.Float32, 2, 2))
	m := g.MatMul(x.Output(0), w.Output(0))
	g.Return("r", m.Output(0))

	// Only x has calibration data: w stays float, so no conversion is
	// requested for it.
	policy := &Policy{
		Ops: map[string]bool{"matmul": true},
		ParamsFor: func(v graph.NodeValue) (Params, bool) {
			if v == x.Output(0) {
				return Params{Scale: 0.2, ZeroPoint: 5}, true
			}
			return Params{}, false
		},
	}
	if err := legalize.New(g, policy).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if m.Input(0).Node().Op() != graph.OpQuantize {
		t.Error("x operand should be quantized")
	}
	if m.Input(1) != w.Output(0) {
		t.Error("w operand should be untouched")
	}
	if got := m.Input(0).Type().Quant; got != (Params{Scale: 0.2, ZeroPoint: 5}) {
		t.Errorf("x params = %+v", got)
	}
	// The output had no params either, so it keeps float32.
	if got := m.OutputType(0).DType(); got != dtypes.Float32 {
		t.Errorf("output dtype = %s, want float32", got)
	}
}

func TestCreateConversionDirection(t *testing.T) {
	g := graph.New("main")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 4))
	policy := &Policy{}

	qt := graph.MakeQuantized(dtypes.Int8, Params{Scale: 0.5}, 4)
	conv, err := policy.CreateConversion(g, x.Output(0), qt)
	if err != nil {
		t.Fatalf("quantize direction error = %v", err)
	}
	if conv.Op() != graph.OpQuantize {
		t.Errorf("op = %s, want quantize", conv.Op())
	}

	back, err := policy.CreateConversion(g, conv.Output(0), graph.MakeType(dtypes.Float32, 4))
	if err != nil {
		t.Fatalf("dequantize direction error = %v", err)
	}
	if back.Op() != graph.OpDequantize {
		t.Errorf("op = %s, want dequantize", back.Op())
	}

	// Float to float has no defined direction: hard failure.
	_, err = policy.CreateConversion(g, x.Output(0), graph.MakeType(dtypes.Float16, 4))
	if err == nil {
		t.Fatal("float->float conversion should fail")
	}
	if !strings.Contains(err.Error(), "no quantization conversion") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIdempotentSecondRun(t *testing.T) {
	g := graph.New("main")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 2))
	g.MatMul(x.Output(0), x.Output(0))

	policy := &Policy{
		Ops:       map[string]bool{"matmul": true},
		ParamsFor: uniformParams(Params{Scale: 0.1}),
		Rename:    map[string]string{"matmul": "quantized_matmul"},
	}
	l := legalize.New(g, policy)
	if err := l.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	after := g.String()

	// The renamed opcode is no longer in Ops, so the second run has
	// nothing to do.
	if err := l.Run(); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if got := g.String(); got != after {
		t.Errorf("second run should be a no-op:\nfirst:\n%s\nsecond:\n%s", after, got)
	}
	if got := len(l.Conversions()); got != 0 {
		t.Errorf("second run Conversions() = %d, want 0", got)
	}
}
