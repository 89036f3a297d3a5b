package orchestration_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

func TestExtractPlanTitle(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"simple heading", "# Build the landing page\n\nDetails follow.", "Build the landing page"},
		{"prd prefix", "# PRD: Checkout redesign\n\nbody", "Checkout redesign"},
		{"prd dash prefix", "# PRD - Checkout redesign", "Checkout redesign"},
		{"problem statement prefix", "# Problem Statement\n\nbody", ""},
		{"case insensitive prefix", "# prd: lowercase title", "lowercase title"},
		{"deep heading", "intro text\n\n### Nested heading\nmore", "Nested heading"},
		{"no heading", "just prose, no headings at all", ""},
		{"empty", "", ""},
		{"heading after prose", "Some preamble.\n# The Real Title\nbody", "The Real Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orchestration.ExtractPlanTitle(tt.doc); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPlanTitle_TruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("x", 150)
	got := orchestration.ExtractPlanTitle("# " + long)
	if len(got) != 100 {
		t.Errorf("expected 100 chars, got %d", len(got))
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := orchestration.TruncateTitle("short", 80); got != "short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("a", 200)
	if got := orchestration.TruncateTitle(long, 80); len(got) != 80 {
		t.Errorf("expected 80 chars, got %d", len(got))
	}
}

func TestTruncateTitle_CutsOnRuneBoundary(t *testing.T) {
	// Each 日 is three bytes, so the 80-byte mark lands mid-rune.
	long := strings.Repeat("日", 60)
	got := orchestration.TruncateTitle(long, 80)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if len(got) != 78 {
		t.Errorf("expected a cut back to the 78-byte rune boundary, got %d", len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncated title should be a prefix of the input")
	}
}

func TestExtractPlanTitle_MultibyteHeadingStaysValid(t *testing.T) {
	got := orchestration.ExtractPlanTitle("# " + strings.Repeat("ü", 120))
	if !utf8.ValidString(got) {
		t.Fatalf("extracted title is not valid UTF-8: %q", got)
	}
	if len(got) > 100 {
		t.Errorf("title should stay within 100 bytes, got %d", len(got))
	}
}

func TestParseTaskPriority(t *testing.T) {
	tests := []struct {
		in   string
		want orchestration.TaskPriority
	}{
		{"low", orchestration.PriorityLow},
		{"medium", orchestration.PriorityMedium},
		{"high", orchestration.PriorityHigh},
		{"urgent", orchestration.PriorityMedium},
		{"", orchestration.PriorityMedium},
	}
	for _, tt := range tests {
		if got := orchestration.ParseTaskPriority(tt.in); got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPlannerResult_AllTasks(t *testing.T) {
	r := &orchestration.PlannerResult{
		Tasks:      []orchestration.TaskSpec{{Key: "a"}, {Key: "b"}},
		HumanTasks: []orchestration.TaskSpec{{Key: "h"}},
	}
	all := r.AllTasks()
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	if all[2].Key != "h" {
		t.Error("human tasks should follow agent tasks")
	}
}

func TestTask_AddBlocks(t *testing.T) {
	task := orchestration.NewTask("t", "", orchestration.PriorityMedium, nil)
	if !task.AddBlocks("x") {
		t.Error("first add should report true")
	}
	if task.AddBlocks("x") {
		t.Error("duplicate add should report false")
	}
	if len(task.Blocks) != 1 {
		t.Errorf("expected 1 edge, got %d", len(task.Blocks))
	}
}

func TestTaskStatus_Predicates(t *testing.T) {
	for _, s := range orchestration.AllTaskStatuses() {
		dispatchable := s == orchestration.TaskUnassigned || s == orchestration.TaskAssigned
		if s.IsDispatchable() != dispatchable {
			t.Errorf("%s: IsDispatchable = %v", s, s.IsDispatchable())
		}
		terminal := s == orchestration.TaskCompleted || s == orchestration.TaskFailed
		if s.IsTerminal() != terminal {
			t.Errorf("%s: IsTerminal = %v", s, s.IsTerminal())
		}
	}
}
