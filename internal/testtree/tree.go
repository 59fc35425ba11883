package testtree

// Tree is an arena of test identity nodes indexed by stable ID, plus
// the marker sets that classify nodes beyond their structural kind.
// The tree is not safe for concurrent mutation; callers ensure at most
// one in-flight resolution walk per subtree.
type Tree struct {
	nodes map[string]*Node
	roots []string

	suites          map[string]bool // Node runs a suite; children are its methods
	testMethods     map[string]bool // Ordinary runnable test function or suite method
	dynamicSubtests map[string]bool // Created on demand from a run's output

	byName   map[string]string // Flat name -> node ID for direct lookup
	topTests []string          // Ordered top-level test IDs, the anchor scan set
}

// NewTree creates an empty test identity tree
func NewTree() *Tree {
	return &Tree{
		nodes:           make(map[string]*Node),
		suites:          make(map[string]bool),
		testMethods:     make(map[string]bool),
		dynamicSubtests: make(map[string]bool),
		byName:          make(map[string]string),
	}
}

// Node returns the node with the given ID
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Parent returns a node's parent, or nil for a root
func (t *Tree) Parent(n *Node) *Node {
	if n == nil || n.parent == "" {
		return nil
	}
	return t.nodes[n.parent]
}

// Children returns a node's children in insertion order
func (t *Tree) Children(n *Node) []*Node {
	result := make([]*Node, 0, len(n.children))
	for _, id := range n.children {
		if c, ok := t.nodes[id]; ok {
			result = append(result, c)
		}
	}
	return result
}

// Roots returns the top-level nodes in insertion order
func (t *Tree) Roots() []*Node {
	result := make([]*Node, 0, len(t.roots))
	for _, id := range t.roots {
		result = append(result, t.nodes[id])
	}
	return result
}

// Len returns the number of live nodes
func (t *Tree) Len() int {
	return len(t.nodes)
}

// add get-or-creates a node. Creation is idempotent by construction:
// the ID is derived from (kind, uri, name), so re-adding after a
// source edit returns the surviving node.
func (t *Tree) add(parent *Node, kind Kind, label, uri, name string) *Node {
	id := NodeID(kind, uri, name)
	if existing, ok := t.nodes[id]; ok {
		return existing
	}

	n := &Node{
		ID:    id,
		Label: label,
		Kind:  kind,
		URI:   uri,
		Name:  name,
	}
	t.nodes[id] = n

	if parent == nil {
		t.roots = append(t.roots, id)
	} else {
		n.parent = parent.ID
		parent.children = append(parent.children, id)
	}

	return n
}

// AddModule adds a top-level module node
func (t *Tree) AddModule(label, uri string) *Node {
	return t.add(nil, KindModule, label, uri, label)
}

// AddPackage adds a package under a module
func (t *Tree) AddPackage(module *Node, label, uri string) *Node {
	return t.add(module, KindPackage, label, uri, label)
}

// AddFile adds a source file under a package
func (t *Tree) AddFile(pkg *Node, label, uri string) *Node {
	return t.add(pkg, KindFile, label, uri, label)
}

// AddTest adds a test function declared in a file. The node is also
// indexed by its flat name for direct lookup and joins the anchor scan
// set used by Resolve.
func (t *Tree) AddTest(file *Node, name string) *Node {
	id := NodeID(KindTest, file.URI, name)
	_, existed := t.nodes[id]

	n := t.add(file, KindTest, name, file.URI, name)
	t.testMethods[n.ID] = true
	t.byName[name] = n.ID
	if !existed {
		t.topTests = append(t.topTests, n.ID)
	}
	return n
}

// AddSuiteMethod adds a method under a suite container. The name keeps
// its receiver qualifier (e.g. "(*mySuite).TestAdd"); the label is the
// bare method name.
func (t *Tree) AddSuiteMethod(suite *Node, name string) *Node {
	n := t.add(suite, KindTest, stripReceiver(name), suite.URI, name)
	t.testMethods[n.ID] = true
	return n
}

// MarkSuite records that a node runs a suite. Classification can
// arrive after creation, once the node's body has been scanned.
func (t *Tree) MarkSuite(n *Node) {
	t.suites[n.ID] = true
}

// IsSuite reports whether a node is a suite container
func (t *Tree) IsSuite(n *Node) bool {
	return n != nil && t.suites[n.ID]
}

// IsTestMethod reports whether a node is a runnable test function
func (t *Tree) IsTestMethod(n *Node) bool {
	return n != nil && t.testMethods[n.ID]
}

// IsDynamicSubtest reports whether a node was discovered from run
// output rather than a source scan
func (t *Tree) IsDynamicSubtest(n *Node) bool {
	return n != nil && t.dynamicSubtests[n.ID]
}

// Remove detaches a node from its parent and discards its subtree.
// A child never outlives removal from its parent.
func (t *Tree) Remove(n *Node) {
	if n == nil {
		return
	}

	if n.parent == "" {
		t.roots = removeID(t.roots, n.ID)
	} else if parent, ok := t.nodes[n.parent]; ok {
		parent.children = removeID(parent.children, n.ID)
	}

	t.discard(n)
}

// discard drops a node and all descendants from the arena and indexes
func (t *Tree) discard(n *Node) {
	for _, id := range n.children {
		if c, ok := t.nodes[id]; ok {
			t.discard(c)
		}
	}

	t.topTests = removeID(t.topTests, n.ID)
	delete(t.nodes, n.ID)
	delete(t.suites, n.ID)
	delete(t.testMethods, n.ID)
	delete(t.dynamicSubtests, n.ID)
	if t.byName[n.Name] == n.ID {
		delete(t.byName, n.Name)
	}
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
