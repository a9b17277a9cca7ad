package costing

import (
	"fmt"
	"sort"

	"menucost/models"
)

// Node identifies an entity in the cost dependency graph.
type Node struct {
	Kind models.ComponentKind
	ID   uint
}

func (n Node) String() string { return fmt.Sprintf("%s:%d", n.Kind, n.ID) }

var kindRank = map[models.ComponentKind]int{
	models.ComponentIngredient: 0,
	models.ComponentRecipe:     1,
	models.ComponentProduct:    2,
}

func nodeLess(a, b Node) bool {
	if a.Kind != b.Kind {
		return kindRank[a.Kind] < kindRank[b.Kind]
	}
	return a.ID < b.ID
}

// SortNodes orders nodes by kind (ingredients first) then id.
func SortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodeLess(nodes[i], nodes[j]) })
}

// NodeSet is an unordered set of graph nodes.
type NodeSet map[Node]struct{}

func (s NodeSet) Add(n Node) { s[n] = struct{}{} }

func (s NodeSet) Has(n Node) bool {
	_, ok := s[n]
	return ok
}

// Sorted returns the members in SortNodes order.
func (s NodeSet) Sorted() []Node {
	out := make([]Node, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	SortNodes(out)
	return out
}

// Graph holds "is used by" edges between ingredients, recipes and products.
// An edge component -> dependent exists for every composition line.
type Graph struct {
	nodes      NodeSet
	components map[Node]NodeSet
	dependents map[Node]NodeSet
}

func NewGraph() *Graph {
	return &Graph{
		nodes:      make(NodeSet),
		components: make(map[Node]NodeSet),
		dependents: make(map[Node]NodeSet),
	}
}

// BuildGraph derives the graph from every recipe item and composition line
// of the snapshot. Lines pointing at unknown entities still produce edges so
// the dependent fails with ErrMissingComponent rather than being skipped.
func BuildGraph(s *Snapshot) *Graph {
	g := NewGraph()
	for id := range s.Ingredients {
		g.AddNode(Node{Kind: models.ComponentIngredient, ID: id})
	}
	for id, recipe := range s.Recipes {
		dependent := Node{Kind: models.ComponentRecipe, ID: id}
		g.AddNode(dependent)
		for _, item := range recipe.Items {
			g.AddEdge(Node{Kind: item.ComponentType, ID: item.ComponentID}, dependent)
		}
	}
	for id, product := range s.Products {
		dependent := Node{Kind: models.ComponentProduct, ID: id}
		g.AddNode(dependent)
		for _, item := range product.Composition {
			g.AddEdge(Node{Kind: item.ComponentType, ID: item.ComponentID}, dependent)
		}
	}
	return g
}

func (g *Graph) AddNode(n Node) { g.nodes.Add(n) }

// AddEdge records that dependent uses component.
func (g *Graph) AddEdge(component, dependent Node) {
	if g.components[dependent] == nil {
		g.components[dependent] = make(NodeSet)
	}
	g.components[dependent].Add(component)
	if g.dependents[component] == nil {
		g.dependents[component] = make(NodeSet)
	}
	g.dependents[component].Add(dependent)
}

func (g *Graph) Has(n Node) bool { return g.nodes.Has(n) }

// Nodes returns every known entity.
func (g *Graph) Nodes() NodeSet {
	out := make(NodeSet, len(g.nodes))
	for n := range g.nodes {
		out.Add(n)
	}
	return out
}

// NodesOfKind returns every known entity of one kind.
func (g *Graph) NodesOfKind(kind models.ComponentKind) NodeSet {
	out := make(NodeSet)
	for n := range g.nodes {
		if n.Kind == kind {
			out.Add(n)
		}
	}
	return out
}

// Components lists the direct inputs of n.
func (g *Graph) Components(n Node) []Node { return g.components[n].Sorted() }

// Dependents lists the entities that use n directly.
func (g *Graph) Dependents(n Node) []Node { return g.dependents[n].Sorted() }

// Downstream returns the roots and every entity that transitively uses them.
func (g *Graph) Downstream(roots ...Node) NodeSet {
	seen := make(NodeSet)
	queue := append([]Node(nil), roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen.Has(n) {
			continue
		}
		seen.Add(n)
		for d := range g.dependents[n] {
			if !seen.Has(d) {
				queue = append(queue, d)
			}
		}
	}
	return seen
}

// Levels orders scope topologically, considering only edges inside scope.
// Every level depends solely on earlier levels, so the members of one level
// can be computed concurrently. Nodes on or behind a cycle are returned
// separately and never appear in a level.
func (g *Graph) Levels(scope NodeSet) (levels [][]Node, cyclic []Node) {
	indegree := make(map[Node]int, len(scope))
	for n := range scope {
		indegree[n] = 0
		for c := range g.components[n] {
			if scope.Has(c) {
				indegree[n]++
			}
		}
	}

	var current []Node
	for n, deg := range indegree {
		if deg == 0 {
			current = append(current, n)
		}
	}
	SortNodes(current)

	for len(current) > 0 {
		levels = append(levels, current)
		var next []Node
		for _, n := range current {
			for d := range g.dependents[n] {
				if !scope.Has(d) {
					continue
				}
				indegree[d]--
				if indegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		SortNodes(next)
		current = next
	}

	for n, deg := range indegree {
		if deg > 0 {
			cyclic = append(cyclic, n)
		}
	}
	SortNodes(cyclic)
	return levels, cyclic
}

// WouldCreateCycle reports whether making dependent use component would close
// a cycle.
func (g *Graph) WouldCreateCycle(dependent, component Node) bool {
	if dependent == component {
		return true
	}
	return g.Downstream(dependent).Has(component)
}

// ValidateEdge returns ErrCyclicDependency when the edge would close a cycle.
func (g *Graph) ValidateEdge(dependent, component Node) error {
	if g.WouldCreateCycle(dependent, component) {
		return fmt.Errorf("%w: %s cannot use %s", ErrCyclicDependency, dependent, component)
	}
	return nil
}

// CyclicNodes returns every node that cannot be ordered.
func (g *Graph) CyclicNodes() []Node {
	_, cyclic := g.Levels(g.Nodes())
	return cyclic
}
