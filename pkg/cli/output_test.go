package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type calls [][]string

func (c calls) Header() []string { return []string{"CALL", "TURNS"} }
func (c calls) Rows() [][]string { return c }

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"name": "test", "value": 123}

	if err := Output(data, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"name": "test", "value": 123}

	if err := Output(data, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("Output should contain 'name: test', got: %s", buf.String())
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	plain := PlainStyles()
	rows := calls{{"CA123", "4"}, {"CA456", "10"}}

	if err := Output(rows, OutputOptions{Format: FormatTable, Writer: &buf, Styles: &plain}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"CALL", "TURNS", "CA123", "CA456", "10"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestOutput_TableFallsBackToYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(map[string]int{"count": 1}, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "count: 1" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestOutput_Unsupported(t *testing.T) {
	if err := Output(1, OutputOptions{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "json": FormatJSON, "yaml": FormatYAML, "table": FormatTable} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("csv accepted")
	}
}

func TestTruncateCells(t *testing.T) {
	s := PlainStyles()
	s.MaxCellWidth = 8
	out := RenderTable(calls{{"a very long transcript line", "1"}}, s)
	if !strings.Contains(out, "a very …") {
		t.Fatalf("cell not truncated:\n%s", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12500 * time.Millisecond, "12.5s"},
		{3*time.Minute + 4*time.Second, "3m4.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if FormatTime(time.Time{}) != "-" {
		t.Error("zero time not rendered as -")
	}
}
