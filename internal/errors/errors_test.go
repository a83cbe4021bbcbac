package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "strict violation",
			code:    "SL001",
			wantMsg: "Built-in object in strict state",
			wantCat: CategoryState,
		},
		{
			name:    "invariant",
			code:    "SL100",
			wantMsg: "Dependency set member without callbacks",
			wantCat: CategoryInvariant,
		},
		{
			name:    "config",
			code:    "SL201",
			wantMsg: "Invalid configuration file",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "SL999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown workload %q", "rows")
	if err.Message != `unknown workload "rows"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestErrorString(t *testing.T) {
	err := New("SL001").WithDetail(`built-in object "time.Time" detected at key "at"`)
	want := `SL001: Built-in object in strict state: built-in object "time.Time" detected at key "at"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &Error{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestWrapAndHasCode(t *testing.T) {
	cause := fmt.Errorf("open statelift.json: permission denied")
	err := FromError(cause, "SL200")

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !HasCode(fmt.Errorf("loading: %w", err), "SL200") {
		t.Error("HasCode should see through fmt wrapping")
	}
	if HasCode(cause, "SL200") {
		t.Error("HasCode matched a plain error")
	}
	if FromError(err, "SL201") != err {
		t.Error("FromError should return an existing *Error unchanged")
	}
	if FromError(nil, "SL200") != nil {
		t.Error("FromError(nil) should be nil")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("SL300").
		WithSuggestion("use --upload s3://my-bucket/reports")
	out := err.Format()

	for _, want := range []string{
		"ERROR SL300: Invalid upload target",
		"Upload targets have the form s3://bucket/prefix.",
		"Hint: use --upload s3://my-bucket/reports",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("SL004").Wrap(fmt.Errorf("10001 notifications"))

	var got map[string]string
	if jerr := json.Unmarshal([]byte(err.FormatJSON()), &got); jerr != nil {
		t.Fatalf("invalid JSON: %v", jerr)
	}
	if got["code"] != "SL004" || got["category"] != "state" || got["cause"] != "10001 notifications" {
		t.Errorf("unexpected JSON fields: %v", got)
	}
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Error("flush aborted", "error", New("SL004"))

	out := buf.String()
	if !strings.Contains(out, `"code":"SL004"`) {
		t.Errorf("log line missing code: %s", out)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, line := range lines {
		if len(line) > 20 {
			t.Errorf("line %q longer than 20", line)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 || codes[0] != "SL001" {
		t.Fatalf("GetAllCodes() = %v", codes)
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template %+v", code, tmpl)
		}
	}

	Register("SL999", Template{Category: CategoryCLI, Message: "custom"})
	defer delete(registry, "SL999")
	if New("SL999").Message != "custom" {
		t.Error("registered template not used")
	}
}
