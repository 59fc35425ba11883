package testtree

import "strings"

// Resolve maps a flat slash-delimited name as reported by the test
// runner (e.g. "mySuite/TestAdd/SubCaseA") to a node in the tree,
// creating dynamic subtest nodes on demand. Not-found is an expected
// outcome (a renamed or removed test) and callers treat it as "skip
// enrichment for this event", never as a failure.
//
// Suite containers are checked before the flat-name map: suite method
// names deliberately collide with ordinary top-level conventions, and
// checking suites first keeps a method's events from being routed to
// an unrelated top-level test of the same bare name.
func (t *Tree) Resolve(flatName string) (*Node, bool) {
	first := flatName
	rest := ""
	if i := strings.Index(flatName, "/"); i >= 0 {
		first, rest = flatName[:i], flatName[i+1:]
	}

	// Pass 1: suite anchors
	for _, id := range t.topTests {
		anchor, ok := t.nodes[id]
		if !ok || !t.suites[anchor.ID] || anchor.Label != first {
			continue
		}

		if rest == "" {
			// The suite runner itself
			return anchor, true
		}

		method := rest
		remainder := ""
		if i := strings.Index(rest, "/"); i >= 0 {
			method, remainder = rest[:i], rest[i+1:]
		}

		for _, cid := range anchor.children {
			child, ok := t.nodes[cid]
			if !ok || stripReceiver(child.Name) != method {
				continue
			}
			if remainder == "" {
				return child, true
			}
			return t.resolveSubtest(child, first+"/"+method, remainder), true
		}
		// Suite matched but the method is unknown; fall through to
		// the flat lookup rather than inventing a method node.
	}

	// Pass 2: ordinary top-level anchors
	for _, id := range t.topTests {
		anchor, ok := t.nodes[id]
		if !ok || t.suites[anchor.ID] || anchor.Label != first {
			continue
		}

		if rest == "" {
			// Ordinary leaf test, exact match
			return anchor, true
		}
		// Dynamic subtest chain under an ordinary test
		return t.resolveSubtest(anchor, first, rest), true
	}

	// Ordinary flat-name lookup
	if id, ok := t.byName[flatName]; ok {
		return t.nodes[id], true
	}
	return nil, false
}

// resolveSubtest walks the remaining path with a cursor, get-or-
// creating one dynamic subtest node per segment. Iterative on purpose:
// deeply nested table-driven cases must not grow the stack.
func (t *Tree) resolveSubtest(parent *Node, consumed, rest string) *Node {
	node := parent
	for rest != "" {
		segment := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			segment, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}

		consumed = consumed + "/" + segment
		node = t.getOrCreateSubtest(node, segment, consumed)
	}
	return node
}

// getOrCreateSubtest returns the dynamic subtest child keyed by the
// name-so-far, creating it on first observation. Re-resolving the same
// path returns the identical node: the ID is derived from the path, so
// duplicates cannot exist.
func (t *Tree) getOrCreateSubtest(parent *Node, label, name string) *Node {
	id := NodeID(KindTest, parent.URI, name)
	if existing, ok := t.nodes[id]; ok {
		return existing
	}

	n := t.add(parent, KindTest, label, parent.URI, name)
	t.dynamicSubtests[n.ID] = true
	t.byName[name] = n.ID
	return n
}

// FormatFilterName renders the name the external tool's native filter
// syntax needs to select the node. For a suite method that is
// "<suiteName>/<methodName>" with the receiver qualifier stripped;
// anything else passes through unchanged.
func (t *Tree) FormatFilterName(flatName string, n *Node) string {
	parent := t.Parent(n)
	if parent != nil && t.suites[parent.ID] {
		return parent.Label + "/" + stripReceiver(n.Name)
	}
	return flatName
}

// PruneDynamicSubtests discards the dynamic-subtest descendants of a
// suite's direct test methods, leaving the methods themselves intact.
// Invoked before a fresh run so stale subtests from a previous
// parameterization don't linger. Recursion stops at dynamic nodes:
// they are leaves for this purpose.
func (t *Tree) PruneDynamicSubtests(n *Node) {
	if n == nil || t.dynamicSubtests[n.ID] {
		return
	}

	if t.suites[n.ID] {
		for _, mid := range n.children {
			method, ok := t.nodes[mid]
			if !ok {
				continue
			}
			t.removeDynamicChildren(method)
		}
		return
	}

	for _, cid := range append([]string(nil), n.children...) {
		t.PruneDynamicSubtests(t.nodes[cid])
	}
}

// removeDynamicChildren drops every dynamic-subtest child (and its
// subtree) of the given node
func (t *Tree) removeDynamicChildren(n *Node) {
	kept := n.children[:0]
	for _, cid := range n.children {
		child, ok := t.nodes[cid]
		if !ok {
			continue
		}
		if t.dynamicSubtests[child.ID] {
			t.discard(child)
			continue
		}
		kept = append(kept, cid)
	}
	n.children = kept
}
