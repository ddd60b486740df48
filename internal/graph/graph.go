package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spachava753/assetpipe/internal/models"
)

// ErrSealed is returned when registering into a sealed graph.
var ErrSealed = errors.New("task graph is sealed")

// Graph maps task ids to executables.
type Graph struct {
	nodes      map[string]*node
	children   map[string][]string
	namespaces map[string][]string
	sealed     bool

	inflight sync.WaitGroup
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*node),
		children:   make(map[string][]string),
		namespaces: make(map[string][]string),
	}
}

// Namespace returns the part of id before the first ':', or "" for ids
// without one.
func Namespace(id string) string {
	ns, _, ok := strings.Cut(id, ":")
	if !ok {
		return ""
	}
	return ns
}

// Register adds a leaf task.
func (g *Graph) Register(id string, task Executable) error {
	if err := g.add(id, KindLeaf, task, nil); err != nil {
		return err
	}
	if ns := Namespace(id); ns != "" {
		g.namespaces[ns] = append(g.namespaces[ns], id)
	}
	return nil
}

// ComposeSequential adds a composite that runs childIDs strictly in order
// and stops at the first failure.
func (g *Graph) ComposeSequential(id string, childIDs ...string) error {
	execs, err := g.resolveAll(childIDs)
	if err != nil {
		return fmt.Errorf("composing %s: %w", id, err)
	}
	return g.add(id, KindSequential, sequential(execs), childIDs)
}

// ComposeParallel adds a composite that runs childIDs concurrently. It
// succeeds when all children succeed and reports the first failure
// without cancelling the others.
func (g *Graph) ComposeParallel(id string, childIDs ...string) error {
	execs, err := g.resolveAll(childIDs)
	if err != nil {
		return fmt.Errorf("composing %s: %w", id, err)
	}
	return g.add(id, KindParallel, parallel{children: execs, inflight: &g.inflight}, childIDs)
}

// ComposeByPrefix adds a sequential composite over every leaf registered
// so far under prefix's namespace ("style:" or "style"), in lexicographic
// id order. The prefix must name a whole namespace.
func (g *Graph) ComposeByPrefix(id, prefix string) error {
	ns := strings.TrimSuffix(prefix, ":")
	if ns == "" || strings.Contains(ns, ":") {
		return models.Configf(id, "prefix %q is not a task namespace", prefix)
	}
	return g.ComposeSequential(id, g.Leaves(ns)...)
}

// Alias registers id as another name for target.
func (g *Graph) Alias(id, target string) error {
	n, ok := g.nodes[target]
	if !ok {
		return fmt.Errorf("aliasing %s: %w", id, &models.UnknownTaskError{ID: target})
	}
	return g.add(id, KindAlias, n, []string{target})
}

// Resolve looks up a task.
func (g *Graph) Resolve(id string) (Executable, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, &models.UnknownTaskError{ID: id}
	}
	return n, nil
}

// Leaves returns the leaf ids of namespace, sorted.
func (g *Graph) Leaves(namespace string) []string {
	ids := append([]string(nil), g.namespaces[namespace]...)
	sort.Strings(ids)
	return ids
}

// Children returns the child ids a composite or alias was built from.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// Kind reports how id was registered.
func (g *Graph) Kind(id string) (Kind, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.kind, true
}

// IDs returns every registered id, sorted.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until every child started by a parallel composite has
// finished, including siblings left running after a failure.
func (g *Graph) Wait() { g.inflight.Wait() }

// Seal freezes the graph; later registrations fail with ErrSealed.
func (g *Graph) Seal() { g.sealed = true }

func (g *Graph) add(id string, kind Kind, exec Executable, children []string) error {
	if g.sealed {
		return fmt.Errorf("registering %s: %w", id, ErrSealed)
	}
	if id == "" {
		return models.Configf("task", "empty task id")
	}
	if _, exists := g.nodes[id]; exists {
		return &models.DuplicateTaskError{ID: id}
	}
	g.nodes[id] = &node{id: id, kind: kind, exec: exec}
	if children != nil {
		g.children[id] = append([]string(nil), children...)
	}
	return nil
}

func (g *Graph) resolveAll(ids []string) ([]Executable, error) {
	execs := make([]Executable, 0, len(ids))
	for _, id := range ids {
		e, err := g.Resolve(id)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, nil
}
