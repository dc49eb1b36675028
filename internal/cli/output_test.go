package cli

import (
	"bytes"
	"strings"
	"testing"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &buf, errW: &bytes.Buffer{}}, &buf
}

func TestOutputHistogram(t *testing.T) {
	out, buf := newTestOutput(false)

	out.Histogram(map[string]int{"11": 524, "00": 500})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "OUTCOME") {
		t.Errorf("header = %q", lines[0])
	}
	// исходы отсортированы
	if !strings.HasPrefix(lines[2], "00") || !strings.HasPrefix(lines[3], "11") {
		t.Errorf("outcomes not sorted:\n%s", buf.String())
	}
	if !strings.Contains(lines[2], "500") || !strings.Contains(lines[3], "524") {
		t.Errorf("counts missing:\n%s", buf.String())
	}
}

func TestOutputHistogramJSONModeSilent(t *testing.T) {
	out, buf := newTestOutput(true)

	out.Histogram(map[string]int{"0": 100})

	if buf.Len() != 0 {
		t.Errorf("histogram must not print in json mode, got %q", buf.String())
	}
}

func TestOutputHistogramEmpty(t *testing.T) {
	out, buf := newTestOutput(false)

	out.Histogram(nil)

	if buf.Len() != 0 {
		t.Errorf("empty histogram must print nothing, got %q", buf.String())
	}
}

func TestOutputPrintJSONMode(t *testing.T) {
	out, buf := newTestOutput(true)

	out.Print([]string{"ID"}, [][]string{{"ignored"}}, map[string]string{"id": "42"})

	if !strings.Contains(buf.String(), `"id": "42"`) {
		t.Errorf("json output missing data: %q", buf.String())
	}
	if strings.Contains(buf.String(), "ignored") {
		t.Errorf("table row leaked into json mode: %q", buf.String())
	}
}
