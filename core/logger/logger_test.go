package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBuildAndCompactRID(t *testing.T) {
	rid := BuildRID(1001, -200, 42)
	if rid != "1001:-200:42" {
		t.Fatalf("unexpected rid: %s", rid)
	}
	if got := CompactRID("100:100:100"); got != "2s.2s.2s" {
		t.Errorf("unexpected compact rid: %s", got)
	}
	// Malformed input is returned unchanged.
	if got := CompactRID("abc"); got != "abc" {
		t.Errorf("expected passthrough, got %s", got)
	}
	if got := CompactRID("1:2"); got != "1:2" {
		t.Errorf("expected passthrough for short rid, got %s", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	in := "hello\x00\x1bworld\tok"
	if got := Sanitize(in); got != "helloworld\tok" {
		t.Errorf("unexpected sanitize result: %q", got)
	}
	if got := SanitizeLimit("abcdef", 3); got != "abc" {
		t.Errorf("unexpected limit result: %q", got)
	}
	if got := SanitizeLimit("abc", 0); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	allowed := 0
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("expected 3 allowed out of 9, got %d", allowed)
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Error("disabled sampler must allow everything")
	}
}

func TestSummarizeStrings(t *testing.T) {
	joined, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	if joined != "a, b" || !truncated {
		t.Errorf("unexpected summary: %q truncated=%v", joined, truncated)
	}
	joined, truncated = SummarizeStrings([]string{"a"}, 2)
	if joined != "a" || truncated {
		t.Errorf("unexpected summary: %q truncated=%v", joined, truncated)
	}
}

func TestAsyncWriterFanOut(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, &b}, 1024)

	if _, err := w.Write([]byte("line one\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		if !strings.Contains(buf.String(), "line one") {
			t.Errorf("sink %s missing payload, got %q", name, buf.String())
		}
	}
}

func TestContextMeta(t *testing.T) {
	ctx := WithUpdateMeta(Background(), 7, 42, -100)
	ctx = WithRID(ctx, "7:-100:42")
	ctx = WithHandler(ctx, "save")

	if UpdateIDFrom(ctx) != 7 {
		t.Error("update id lost")
	}
	if UserIDFrom(ctx) != 42 {
		t.Error("user id lost")
	}
	if ChatIDFrom(ctx) != -100 {
		t.Error("chat id lost")
	}
	if RIDFrom(ctx) != "7:-100:42" {
		t.Error("rid lost")
	}
	if HandlerFrom(ctx) != "save" {
		t.Error("handler lost")
	}
}
