package bep

import "testing"

func TestErrorCollector_ContinuationParagraph(t *testing.T) {
	c := &ErrorCollector{}

	c.Collect("INFO: Build completed")
	c.Collect("ERROR: boom\nmore")
	got := c.Collect("extra detail line")

	want := []string{"ERROR: boom\nmore", "extra detail line"}
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("messages[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestErrorCollector_MidLineError(t *testing.T) {
	c := &ErrorCollector{}

	got := c.Collect("some prefix ERROR: it broke")
	if len(got) != 1 || got[0] != "ERROR: it broke" {
		t.Errorf("messages = %v, want substring from the match onward", got)
	}
}

func TestErrorCollector_LogLevelEndsParagraph(t *testing.T) {
	c := &ErrorCollector{}

	c.Collect("ERROR: first")
	c.Collect("INFO: something unrelated")
	got := c.Collect("this is not a continuation anymore")

	if len(got) != 1 {
		t.Errorf("messages = %v, want only the original error", got)
	}
}

func TestErrorCollector_ProgressCounterEndsParagraph(t *testing.T) {
	c := &ErrorCollector{}

	c.Collect("ERROR: first")
	c.Collect("[12 / 340] Compiling foo.go")
	got := c.Collect("stray line")

	if len(got) != 1 {
		t.Errorf("messages = %v, want only the original error", got)
	}
}

func TestErrorCollector_EmptyInputIsPeek(t *testing.T) {
	c := &ErrorCollector{}
	c.Collect("ERROR: first")

	got := c.Collect("")
	if len(got) != 1 {
		t.Fatalf("peek changed the list: %v", got)
	}

	// State must survive the peek: the next line still continues the error
	got = c.Collect("continuation")
	if len(got) != 2 {
		t.Errorf("peek cleared pending state: %v", got)
	}
}

func TestErrorCollector_CrashBanner(t *testing.T) {
	c := &ErrorCollector{}
	got := c.Collect("FATAL: bazel crashed due to an internal error")
	if len(got) != 1 {
		t.Errorf("crash banner not collected: %v", got)
	}
}
