package testtree

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind classifies a node's structural role in the test tree.
// Suite / suite-method / dynamic-subtest are deliberately NOT kinds:
// a plain test can be discovered to be a suite runner only after its
// body is scanned, so those classifications live in marker sets on the
// tree instead of the type.
type Kind int

const (
	KindModule Kind = iota
	KindPackage
	KindFile
	KindTest
)

// String returns the string representation of a kind
func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindPackage:
		return "package"
	case KindFile:
		return "file"
	case KindTest:
		return "test"
	default:
		return "unknown"
	}
}

// Node is one test identity: a module, package, file, test function,
// suite method, or dynamically discovered subtest. The tree owns the
// parent→child edges; the parent field is a non-owning back-reference
// used only for suite-membership lookups, never lifetime management.
type Node struct {
	ID    string
	Label string // Display label (e.g. "TestParse", "mySuite")
	Kind  Kind
	URI   string // Containing document
	Name  string // Logical dotted/slash name (e.g. "(*mySuite).TestAdd", "TestParse/case_1")

	parent   string
	children []string // Ordered child IDs, stable for display
}

// NodeID derives the deterministic identity of a node from its kind,
// containing document, and logical name. It must never be randomly
// assigned: re-resolution after a source edit matches old and new
// nodes by this identity rather than by object reference.
func NodeID(kind Kind, uri, name string) string {
	hash := sha256.Sum256([]byte(kind.String() + ":" + uri + ":" + name))
	// Use first 16 bytes (32 hex chars) for ID
	return hex.EncodeToString(hash[:16])
}

// stripReceiver removes a "(*type)." or "type." qualifier from a suite
// method identifier, leaving the bare method name.
func stripReceiver(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
