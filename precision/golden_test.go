package precision

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/sebdah/goldie/v2"

	"github.com/gomlx/milgraph/graph"
	"github.com/gomlx/milgraph/legalize"
)

// TestGoldenMatMul snapshots the legalized form of r = matmul(a, b).
func TestGoldenMatMul(t *testing.T) {
	g, _, _ := buildMatMul(t)

	if err := legalize.New(g, &Policy{}).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	gold := goldie.New(t)
	gold.Assert(t, "matmul_float16", []byte(g.String()))
}

// TestGoldenFanOut snapshots a diamond: both relus share one operand
// cast, a redirected consumer is wired back to the retyped values, and
// back-casts with no remaining users are left in place for a later
// dead-code pass.
func TestGoldenFanOut(t *testing.T) {
	g := graph.New("fanout")
	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 4))
	r1 := g.Relu(x.Output(0))
	r2 := g.Relu(x.Output(0))
	sum := g.Add(r1.Output(0), r2.Output(0))
	g.Return("out", sum.Output(0))

	if err := legalize.New(g, &Policy{}).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check() after run: %v", err)
	}

	gold := goldie.New(t)
	gold.Assert(t, "fanout_float16", []byte(g.String()))
}
