package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gomlx/milgraph/graph"
	"github.com/gomlx/milgraph/legalize"
	"github.com/gomlx/milgraph/precision"
	"github.com/gomlx/milgraph/quant"
)

// LegalizeOptions holds flags for the legalize command.
type LegalizeOptions struct {
	*RootOptions
	Policy    string
	Ops       []string
	Scale     float64
	ZeroPoint int32
}

// NewLegalizeCommand creates the legalize command.
func NewLegalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LegalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "legalize <graph.yaml>",
		Short: "Run a type-legalization policy over a graph",
		Long: `Load a YAML graph description, rewrite it so every eligible node's
input and output types satisfy the selected policy, and print the
legalized graph.

Policies:
  float16   lower float32 arithmetic to float16 (default)
  bfloat16  lower float32 arithmetic to bfloat16
  int8      quantize the listed ops to int8 with a uniform scale

Example:
  milgraph legalize model.yaml --policy float16
  milgraph legalize model.yaml --policy int8 --ops matmul --scale 0.05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLegalize(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "float16", "legalization policy: float16, bfloat16 or int8")
	cmd.Flags().StringSliceVar(&opts.Ops, "ops", []string{"matmul"}, "ops to quantize (int8 policy)")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 1.0/128, "uniform quantization scale (int8 policy)")
	cmd.Flags().Int32Var(&opts.ZeroPoint, "zero-point", 0, "uniform quantization zero point (int8 policy)")

	return cmd
}

func runLegalize(cmd *cobra.Command, opts *LegalizeOptions, path string) error {
	g, err := LoadGraph(path)
	if err != nil {
		return err
	}

	policy, err := buildPolicy(opts)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	slog.Debug("legalizing graph", "run", runID, "graph", g.Name(),
		"policy", opts.Policy, "nodes", g.NumNodes())

	l := legalize.New(g, policy)
	if err := l.Run(); err != nil {
		return errors.Wrapf(err, "legalizing %q with policy %q", g.Name(), opts.Policy)
	}
	if err := g.Check(); err != nil {
		return errors.Wrap(err, "legalized graph is inconsistent")
	}

	slog.Info("legalized graph", "run", runID, "graph", g.Name(),
		"policy", opts.Policy, "conversions", len(l.Conversions()), "nodes", g.NumNodes())

	fmt.Fprint(cmd.OutOrStdout(), g.String())
	return nil
}

func buildPolicy(opts *LegalizeOptions) (legalize.Policy, error) {
	switch strings.ToLower(opts.Policy) {
	case "float16", "fp16":
		return &precision.Policy{}, nil
	case "bfloat16", "bf16":
		dt, err := graph.DTypeFromName("bfloat16")
		if err != nil {
			return nil, err
		}
		return &precision.Policy{To: dt}, nil
	case "int8":
		ops := make(map[string]bool, len(opts.Ops))
		for _, op := range opts.Ops {
			ops[op] = true
		}
		params := quant.Params{Scale: opts.Scale, ZeroPoint: opts.ZeroPoint}
		return &quant.Policy{
			Ops: ops,
			ParamsFor: func(graph.NodeValue) (quant.Params, bool) {
				return params, true
			},
		}, nil
	}
	return nil, errors.Errorf("unknown policy %q", opts.Policy)
}
