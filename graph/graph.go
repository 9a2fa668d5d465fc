// Package graph provides a mutable, MIL-flavored dataflow graph.
//
// A Graph is an ordered list of Nodes. Each Node has an opcode, typed
// input edges referencing other nodes' output slots, and one or more
// typed output slots. Unlike an append-only program builder, the graph
// supports the mutations a rewriting pass needs: inserting a node at an
// arbitrary position, retyping an output slot in place, enumerating the
// current users of a value, and rewiring an input edge to a different
// source.
//
// Example usage:
//
//	g := graph.New("main")
//	x := g.Parameter("x", graph.MakeType(dtypes.Float32, 2, 3))
//	y := g.Parameter("y", graph.MakeType(dtypes.Float32, 3, 4))
//	z := g.MatMul(x.Output(0), y.Output(0))
//	g.Return("z", z.Output(0))
package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// Node is one operation in a Graph. Its identity is stable: mutating
// its output types or rewiring its inputs never invalidates existing
// references to it.
type Node struct {
	graph  *Graph
	id     int
	name   string
	op     string
	inputs []NodeValue
	// outputs holds the type of each output slot; users holds, per
	// slot, the input edges currently reading from it.
	outputs []Type
	users   [][]InputRef
	attrs   map[string]any
}

// NodeValue references one output slot of a node. It is the unit a
// rewriting pass reasons about when comparing current vs desired types.
type NodeValue struct {
	node  *Node
	index int
}

// InputRef identifies one input slot of a node, used when enumerating
// the consumers of a value.
type InputRef struct {
	Node  *Node
	Index int
}

// Graph is an ordered, mutable collection of nodes. It owns its nodes;
// nodes are created through the graph and positioned within it.
type Graph struct {
	name   string
	nodes  []*Node
	nextID int
}

// New creates an empty graph with the given name.
func New(name string) *Graph {
	return &Graph{name: name}
}

// Name returns the graph's name.
func (g *Graph) Name() string {
	return g.name
}

// NumNodes returns the current number of nodes.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Nodes returns a snapshot of the node list in graph order. The
// returned slice is a copy: inserting or repositioning nodes after the
// call does not perturb it.
func (g *Graph) Nodes() []*Node {
	snapshot := make([]*Node, len(g.nodes))
	copy(snapshot, g.nodes)
	return snapshot
}

// genName generates a unique name for inserted nodes.
func (g *Graph) genName(prefix string) string {
	name := fmt.Sprintf("%s_%d", prefix, g.nextID)
	g.nextID++
	return name
}

// NewNode creates a node with the given opcode, output types and
// inputs, appends it to the graph and wires its use lists. The name is
// generated from the opcode; use NewNamedNode to control it.
func (g *Graph) NewNode(op string, outputs []Type, inputs ...NodeValue) *Node {
	return g.NewNamedNode(g.genName(op), op, outputs, inputs...)
}

// NewNamedNode is NewNode with an explicit node name. Names are used in
// dumps and graph files; they are not required to be unique, the node
// id disambiguates.
func (g *Graph) NewNamedNode(name, op string, outputs []Type, inputs ...NodeValue) *Node {
	n := &Node{
		graph:   g,
		id:      g.nextID,
		name:    name,
		op:      op,
		inputs:  make([]NodeValue, len(inputs)),
		outputs: make([]Type, len(outputs)),
		users:   make([][]InputRef, len(outputs)),
	}
	g.nextID++
	copy(n.outputs, outputs)
	g.nodes = append(g.nodes, n)
	for i, v := range inputs {
		n.inputs[i] = v
		v.addUser(InputRef{Node: n, Index: i})
	}
	return n
}

// index returns the position of n in the node list, or -1.
func (g *Graph) index(n *Node) int {
	for i, candidate := range g.nodes {
		if candidate == n {
			return i
		}
	}
	return -1
}

// MoveBefore repositions n immediately before anchor. Both nodes must
// belong to this graph.
func (g *Graph) MoveBefore(n, anchor *Node) {
	g.move(n, anchor, 0)
}

// MoveAfter repositions n immediately after anchor. Both nodes must
// belong to this graph.
func (g *Graph) MoveAfter(n, anchor *Node) {
	g.move(n, anchor, 1)
}

func (g *Graph) move(n, anchor *Node, offset int) {
	if n == anchor {
		return
	}
	from := g.index(n)
	if from < 0 {
		panic(fmt.Sprintf("graph: node %q is not in graph %q", n.name, g.name))
	}
	g.nodes = append(g.nodes[:from], g.nodes[from+1:]...)
	to := g.index(anchor)
	if to < 0 {
		panic(fmt.Sprintf("graph: anchor %q is not in graph %q", anchor.name, g.name))
	}
	to += offset
	g.nodes = append(g.nodes, nil)
	copy(g.nodes[to+1:], g.nodes[to:])
	g.nodes[to] = n
}

// SetInput rewires input slot i of n to read from v, updating the use
// lists of both the old and the new source.
func (g *Graph) SetInput(n *Node, i int, v NodeValue) {
	old := n.inputs[i]
	if old == v {
		return
	}
	old.removeUser(InputRef{Node: n, Index: i})
	n.inputs[i] = v
	v.addUser(InputRef{Node: n, Index: i})
}

// RetypeOutput mutates the type of output slot o of n in place. The
// node then natively produces the new type; existing NodeValue
// references to the slot observe the new type. Consumers are not
// touched.
func (g *Graph) RetypeOutput(n *Node, o int, t Type) {
	n.outputs[o] = t
}

// Users returns the input edges currently reading from v, in no
// particular order. The returned slice is a copy and stays valid while
// edges are rewired.
func (g *Graph) Users(v NodeValue) []InputRef {
	users := v.node.users[v.index]
	out := make([]InputRef, len(users))
	copy(out, users)
	return out
}

// Check validates the graph's internal consistency: every input edge
// resolves to a live output slot of a node in this graph, and the use
// lists mirror the input edges exactly.
func (g *Graph) Check() error {
	present := make(map[*Node]bool, len(g.nodes))
	for _, n := range g.nodes {
		present[n] = true
	}
	for _, n := range g.nodes {
		for i, v := range n.inputs {
			if v.node == nil {
				return errors.Errorf("node %q input %d is unset", n.name, i)
			}
			if !present[v.node] {
				return errors.Errorf("node %q input %d references node %q outside graph %q",
					n.name, i, v.node.name, g.name)
			}
			if v.index >= len(v.node.outputs) {
				return errors.Errorf("node %q input %d references output %d of %q which only has %d",
					n.name, i, v.index, v.node.name, len(v.node.outputs))
			}
			if !v.node.hasUser(v.index, InputRef{Node: n, Index: i}) {
				return errors.Errorf("node %q input %d is missing from the use list of %q:%d",
					n.name, i, v.node.name, v.index)
			}
		}
		for o, users := range n.users {
			for _, u := range users {
				if !present[u.Node] {
					return errors.Errorf("use list of %q:%d references node %q outside graph %q",
						n.name, o, u.Node.name, g.name)
				}
				if got := u.Node.inputs[u.Index]; got.node != n || got.index != o {
					return errors.Errorf("use list of %q:%d claims %q input %d, which reads %q:%d",
						n.name, o, u.Node.name, u.Index, got.node.name, got.index)
				}
			}
		}
	}
	return nil
}

// Name returns the node's name.
func (n *Node) Name() string {
	return n.name
}

// Op returns the node's opcode.
func (n *Node) Op() string {
	return n.op
}

// SetOp replaces the node's opcode. Inputs, outputs and users are
// untouched; this is the mutation a morph hook uses to swap a node to
// a variant kernel.
func (n *Node) SetOp(op string) {
	n.op = op
}

// NumInputs returns the number of input slots.
func (n *Node) NumInputs() int {
	return len(n.inputs)
}

// Input returns the value wired to input slot i.
func (n *Node) Input(i int) NodeValue {
	return n.inputs[i]
}

// NumOutputs returns the number of output slots.
func (n *Node) NumOutputs() int {
	return len(n.outputs)
}

// Output returns the value produced at output slot o.
func (n *Node) Output(o int) NodeValue {
	return NodeValue{node: n, index: o}
}

// OutputType returns the current type of output slot o.
func (n *Node) OutputType(o int) Type {
	return n.outputs[o]
}

// SetAttr records a named attribute on the node. Attributes carry
// opcode-specific payloads such as a cast's destination dtype or a
// quantize's scale.
func (n *Node) SetAttr(key string, value any) {
	if n.attrs == nil {
		n.attrs = make(map[string]any)
	}
	n.attrs[key] = value
}

// Attr returns the named attribute, or nil.
func (n *Node) Attr(key string) any {
	return n.attrs[key]
}

// Node returns the producing node.
func (v NodeValue) Node() *Node {
	return v.node
}

// OutputIndex returns the producer's output slot index.
func (v NodeValue) OutputIndex() int {
	return v.index
}

// Type returns the value's current type. It reflects in-place
// retyping of the producer's output slot.
func (v NodeValue) Type() Type {
	return v.node.outputs[v.index]
}

// String returns a short form like "%matmul_3:0".
func (v NodeValue) String() string {
	if v.node == nil {
		return "%<nil>"
	}
	return fmt.Sprintf("%%%s:%d", v.node.name, v.index)
}

func (v NodeValue) addUser(ref InputRef) {
	v.node.users[v.index] = append(v.node.users[v.index], ref)
}

func (v NodeValue) removeUser(ref InputRef) {
	users := v.node.users[v.index]
	for i, u := range users {
		if u == ref {
			v.node.users[v.index] = append(users[:i], users[i+1:]...)
			return
		}
	}
}

func (n *Node) hasUser(o int, ref InputRef) bool {
	for _, u := range n.users[o] {
		if u == ref {
			return true
		}
	}
	return false
}
