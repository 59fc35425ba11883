package runner

import (
	"reflect"
	"testing"
)

func TestBuildArgs_Test(t *testing.T) {
	args := BuildArgs(Request{
		Intent:       IntentTest,
		EventLogPath: "/tmp/bep.json",
		Targets:      []string{"//calc:calc_test"},
		TestNames:    []string{"TestAdd"},
	})

	want := []string{
		"test",
		"--build_event_json_file=/tmp/bep.json",
		"--test_filter=^TestAdd$",
		"//calc:calc_test",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestBuildArgs_Coverage(t *testing.T) {
	args := BuildArgs(Request{
		Intent:       IntentCoverage,
		EventLogPath: "/tmp/bep.json",
		Targets:      []string{"//..."},
	})

	want := []string{
		"coverage",
		"--build_event_json_file=/tmp/bep.json",
		"--combined_report=lcov",
		"--instrumentation_filter=^//",
		"//...",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestBuildArgs_DebugDefaultsPort(t *testing.T) {
	args := BuildArgs(Request{
		Intent:  IntentDebug,
		Targets: []string{"//calc:calc_test"},
	})

	want := []string{
		"debug",
		"--test_arg=--port=2345",
		"--test_output=streamed",
		"//calc:calc_test",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestBuildArgs_EnvSortedAndFlagsOrdered(t *testing.T) {
	args := BuildArgs(Request{
		Intent:  IntentTest,
		Targets: []string{"//calc:calc_test"},
		Env:     map[string]string{"ZED": "9", "ALPHA": "1"},
		Flags:   []string{"--nocache_test_results"},
	})

	want := []string{
		"test",
		"--test_env=ALPHA=1",
		"--test_env=ZED=9",
		"--nocache_test_results",
		"//calc:calc_test",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestBuildArgs_BenchmarkMarker(t *testing.T) {
	args := BuildArgs(Request{
		Intent:  IntentBenchmark,
		Targets: []string{"//calc:calc_test"},
	})

	want := []string{
		"test",
		"//calc:calc_test",
		"--", "-test.bench=.", "-test.run=^$",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestTestFilter(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"single", []string{"TestAdd"}, "^TestAdd$"},
		{"subtest segments anchored", []string{"TestA/b.c"}, `^TestA$/^b\.c$`},
		{"alternates", []string{"TestA", "TestB"}, "^TestA$|^TestB$"},
		{"metacharacters escaped", []string{"Test(x)+[y]"}, `^Test\(x\)\+\[y\]$`},
		{"empty names skipped", []string{"", "TestA"}, "^TestA$"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TestFilter(tt.names); got != tt.want {
				t.Errorf("TestFilter(%v) = %q, want %q", tt.names, got, tt.want)
			}
		})
	}
}
