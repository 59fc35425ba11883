package testtree

import "testing"

func TestResolve_TopLevelExact(t *testing.T) {
	tree, file := buildFixture()
	want := tree.AddTest(file, "TestAdd")

	got, ok := tree.Resolve("TestAdd")
	if !ok || got != want {
		t.Errorf("Resolve(TestAdd) = %v, %v", got, ok)
	}
}

func TestResolve_NotFoundIsNormal(t *testing.T) {
	tree, _ := buildFixture()

	if _, ok := tree.Resolve("TestRenamed"); ok {
		t.Error("unknown name resolved")
	}
}

func TestResolve_DynamicSubtestIdempotent(t *testing.T) {
	tree, file := buildFixture()
	tree.AddTest(file, "TestTable")

	first, ok := tree.Resolve("TestTable/case_1/deep")
	if !ok {
		t.Fatal("subtest resolution failed")
	}
	count := tree.Len()

	second, ok := tree.Resolve("TestTable/case_1/deep")
	if !ok {
		t.Fatal("re-resolution failed")
	}

	if first.ID != second.ID {
		t.Errorf("re-resolution created a duplicate: %s vs %s", first.ID, second.ID)
	}
	if tree.Len() != count {
		t.Errorf("node count grew from %d to %d on re-resolution", count, tree.Len())
	}
	if !tree.IsDynamicSubtest(first) {
		t.Error("subtest not marked dynamic")
	}
	if tree.IsDynamicSubtest(tree.Parent(tree.Parent(first))) {
		t.Error("declared test wrongly marked dynamic")
	}
}

func TestResolve_SuiteMethod(t *testing.T) {
	tree, file := buildFixture()

	suite := tree.AddTest(file, "mySuite")
	tree.MarkSuite(suite)
	method := tree.AddSuiteMethod(suite, "(*mySuiteType).TestCase1")

	got, ok := tree.Resolve("mySuite/TestCase1")
	if !ok || got != method {
		t.Fatalf("Resolve(mySuite/TestCase1) = %v, %v, want the method node", got, ok)
	}

	// The inverse helper reproduces the runner's filter form exactly
	if filter := tree.FormatFilterName("mySuite/TestCase1", method); filter != "mySuite/TestCase1" {
		t.Errorf("FormatFilterName = %q, want mySuite/TestCase1", filter)
	}
}

func TestResolve_SuiteRunnerItself(t *testing.T) {
	tree, file := buildFixture()
	suite := tree.AddTest(file, "mySuite")
	tree.MarkSuite(suite)

	got, ok := tree.Resolve("mySuite")
	if !ok || got != suite {
		t.Errorf("Resolve(mySuite) = %v, %v, want the suite node", got, ok)
	}
}

func TestResolve_SuiteMethodSubtest(t *testing.T) {
	tree, file := buildFixture()
	suite := tree.AddTest(file, "mySuite")
	tree.MarkSuite(suite)
	method := tree.AddSuiteMethod(suite, "(*mySuiteType).TestCase1")

	sub, ok := tree.Resolve("mySuite/TestCase1/SubCaseA")
	if !ok {
		t.Fatal("suite method subtest did not resolve")
	}
	if tree.Parent(sub) != method {
		t.Error("subtest not parented under the method")
	}
	if !tree.IsDynamicSubtest(sub) {
		t.Error("subtest not marked dynamic")
	}
	if sub.Name != "mySuite/TestCase1/SubCaseA" {
		t.Errorf("subtest name = %q", sub.Name)
	}
}

func TestResolve_SuitePrecedenceOverFlatName(t *testing.T) {
	tree, file := buildFixture()

	// A top-level test deliberately shares the bare method name, and
	// another shares the suite's own name
	decoy := tree.AddTest(file, "TestCase1")
	flat := tree.AddTest(file, "mySuite")

	suiteFile := tree.AddFile(tree.Parent(file), "suite_test.go", "file:///ws/calc/suite_test.go")
	suite := tree.AddTest(suiteFile, "mySuite")
	tree.MarkSuite(suite)
	method := tree.AddSuiteMethod(suite, "(*mySuiteType).TestCase1")

	got, ok := tree.Resolve("mySuite/TestCase1")
	if !ok || got != method {
		t.Errorf("suite method lost to flat lookup: got %v", got)
	}
	if got == decoy || got == flat {
		t.Error("events misrouted to an unrelated top-level test")
	}
}

func TestFormatFilterName_PassthroughForPlainTests(t *testing.T) {
	tree, file := buildFixture()
	n := tree.AddTest(file, "TestAdd")

	if got := tree.FormatFilterName("TestAdd", n); got != "TestAdd" {
		t.Errorf("FormatFilterName = %q, want unchanged", got)
	}
}

func TestPruneDynamicSubtests(t *testing.T) {
	tree, file := buildFixture()

	suite := tree.AddTest(file, "mySuite")
	tree.MarkSuite(suite)
	method := tree.AddSuiteMethod(suite, "(*mySuiteType).TestCase1")
	other := tree.AddSuiteMethod(suite, "(*mySuiteType).TestCase2")

	// Two runs' worth of dynamic subtests, one nested
	tree.Resolve("mySuite/TestCase1/param_a")
	tree.Resolve("mySuite/TestCase1/param_b/deep")
	tree.Resolve("mySuite/TestCase2/x")

	before := tree.Len()
	tree.PruneDynamicSubtests(tree.Roots()[0])

	if got := tree.Len(); got != before-4 {
		t.Errorf("Len = %d after prune, want %d", got, before-4)
	}
	if _, ok := tree.Node(method.ID); !ok {
		t.Error("test method removed by prune")
	}
	if _, ok := tree.Node(other.ID); !ok {
		t.Error("test method removed by prune")
	}
	if len(tree.Children(method)) != 0 {
		t.Errorf("method still has %d dynamic children", len(tree.Children(method)))
	}

	// Pruning is rerunnable: a fresh run recreates what it observes
	again, ok := tree.Resolve("mySuite/TestCase1/param_a")
	if !ok || !tree.IsDynamicSubtest(again) {
		t.Error("subtest not recreatable after prune")
	}
}

func TestStripReceiver(t *testing.T) {
	tests := []struct{ in, want string }{
		{"(*mySuiteType).TestCase1", "TestCase1"},
		{"mySuiteType.TestCase1", "TestCase1"},
		{"TestPlain", "TestPlain"},
	}
	for _, tt := range tests {
		if got := stripReceiver(tt.in); got != tt.want {
			t.Errorf("stripReceiver(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
