// internal/telegram/adapter_test.go
package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/user/birdwatch/internal/types"
)

func testEvent(summary string) *types.Event {
	return &types.Event{
		ID:         "1989",
		Account:    "alice",
		OccurredAt: time.Date(2025, 11, 13, 16, 25, 20, 0, time.UTC),
		Summary:    summary,
		Link:       "https://x.com/alice/status/1989",
	}
}

func TestFormatAlert(t *testing.T) {
	got := formatAlert("alice", testEvent("hello world"))

	if !strings.Contains(got, "<b>New post from @alice</b>") {
		t.Errorf("missing header in %q", got)
	}
	if !strings.Contains(got, "<i>hello world</i>") {
		t.Errorf("missing summary preview in %q", got)
	}
	if !strings.Contains(got, `<a href="https://x.com/alice/status/1989">View Post</a>`) {
		t.Errorf("missing link in %q", got)
	}
}

func TestFormatAlert_EscapesHTML(t *testing.T) {
	got := formatAlert("alice", testEvent(`<script> & "quotes"`))

	if strings.Contains(got, "<script>") {
		t.Errorf("summary must be escaped, got %q", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") {
		t.Errorf("expected escaped markup in %q", got)
	}
}

func TestFormatAlert_TruncatesLongSummary(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := formatAlert("alice", testEvent(long))

	if strings.Contains(got, long) {
		t.Error("long summary should be truncated")
	}
	if !strings.Contains(got, strings.Repeat("a", maxSummaryPreview)+"...") {
		t.Error("expected truncated preview with ellipsis")
	}
}

func TestFormatAlert_NoSummary(t *testing.T) {
	got := formatAlert("alice", testEvent(""))

	if strings.Contains(got, "<i>") {
		t.Errorf("empty summary should produce no preview block, got %q", got)
	}
	if !strings.Contains(got, "View Post") {
		t.Errorf("missing link in %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in     string
		want   types.Command
		wantOK bool
	}{
		{"/remove", types.Command{Verb: types.VerbRemove, Target: types.TargetLastAlerted}, true},
		{"/remove alice", types.Command{Verb: types.VerbRemove, Target: "alice"}, true},
		{"/remove @Alice", types.Command{Verb: types.VerbRemove, Target: "@Alice"}, true},
		{"/remove@birdwatch_bot alice", types.Command{Verb: types.VerbRemove, Target: "alice"}, true},
		{"  /remove   bob  ", types.Command{Verb: types.VerbRemove, Target: "bob"}, true},
		{"/start", types.Command{}, false},
		{"hello there", types.Command{}, false},
		{"", types.Command{}, false},
	}

	for _, c := range cases {
		got, ok := parseCommand(c.in)
		if ok != c.wantOK {
			t.Errorf("parseCommand(%q) ok = %v, want %v", c.in, ok, c.wantOK)
			continue
		}
		if got != c.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}
