package cli

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gomlx/milgraph/graph"
)

// GraphFile is the YAML description of a graph accepted by the CLI.
type GraphFile struct {
	Name    string      `yaml:"name"`
	Inputs  []ValueSpec `yaml:"inputs"`
	Nodes   []NodeSpec  `yaml:"nodes"`
	Outputs []string    `yaml:"outputs"`
}

// ValueSpec declares a graph input.
type ValueSpec struct {
	Name  string `yaml:"name"`
	DType string `yaml:"dtype"`
	Dims  []int  `yaml:"dims"`
}

// NodeSpec declares one operation. Inputs name earlier inputs or
// nodes; DType and Dims give the output type.
type NodeSpec struct {
	Name   string   `yaml:"name"`
	Op     string   `yaml:"op"`
	Inputs []string `yaml:"inputs"`
	DType  string   `yaml:"dtype"`
	Dims   []int    `yaml:"dims"`
}

// LoadGraph reads a YAML graph description and builds the graph.
func LoadGraph(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading graph file %q", path)
	}
	var file GraphFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing graph file %q", path)
	}
	return BuildGraph(&file)
}

// BuildGraph constructs a graph from its file description.
func BuildGraph(file *GraphFile) (*graph.Graph, error) {
	name := file.Name
	if name == "" {
		name = "main"
	}
	g := graph.New(name)
	values := make(map[string]graph.NodeValue, len(file.Inputs)+len(file.Nodes))

	for _, in := range file.Inputs {
		t, err := parseType(in.DType, in.Dims)
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", in.Name)
		}
		if _, dup := values[in.Name]; dup {
			return nil, errors.Errorf("duplicate value name %q", in.Name)
		}
		values[in.Name] = g.Parameter(in.Name, t).Output(0)
	}

	for _, spec := range file.Nodes {
		if spec.Op == "" {
			return nil, errors.Errorf("node %q has no op", spec.Name)
		}
		t, err := parseType(spec.DType, spec.Dims)
		if err != nil {
			return nil, errors.Wrapf(err, "node %q", spec.Name)
		}
		inputs := make([]graph.NodeValue, len(spec.Inputs))
		for i, ref := range spec.Inputs {
			v, ok := values[ref]
			if !ok {
				return nil, errors.Errorf("node %q input %q is not defined", spec.Name, ref)
			}
			inputs[i] = v
		}
		if _, dup := values[spec.Name]; dup {
			return nil, errors.Errorf("duplicate value name %q", spec.Name)
		}
		n := g.NewNamedNode(spec.Name, spec.Op, []graph.Type{t}, inputs...)
		values[spec.Name] = n.Output(0)
	}

	for _, out := range file.Outputs {
		v, ok := values[out]
		if !ok {
			return nil, errors.Errorf("output %q is not defined", out)
		}
		g.Return(out+"_out", v)
	}

	if err := g.Check(); err != nil {
		return nil, errors.Wrap(err, "built graph is inconsistent")
	}
	return g, nil
}

func parseType(dtype string, dims []int) (graph.Type, error) {
	if dtype == "" {
		dtype = "float32"
	}
	dt, err := graph.DTypeFromName(dtype)
	if err != nil {
		return graph.Invalid(), err
	}
	return graph.MakeType(dt, dims...), nil
}
