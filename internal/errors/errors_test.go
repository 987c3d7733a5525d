package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
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
			name:    "config error",
			code:    CodeConfigInvalid,
			wantMsg: "Invalid configuration value",
			wantCat: CategoryConfig,
		},
		{
			name:    "persist error",
			code:    CodePersistDecode,
			wantMsg: "Stored value could not be decoded",
			wantCat: CategoryPersist,
		},
		{
			name:    "inspect error",
			code:    CodeInspectNotFound,
			wantMsg: "Readable not registered",
			wantCat: CategoryInspect,
		},
		{
			name:    "unknown error code",
			code:    "R999",
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
	err := Newf(CategoryCLI, "flag %q is required", "addr")
	if err.Message != `flag "addr" is required` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" || err.Error() != err.Message {
		t.Errorf("Error() = %q, want the bare message", err.Error())
	}
}

func TestError_Error(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := New(CodeConfigParse).WithDetail("ripple.json line %d", 3).Wrap(cause)

	want := "R101: Invalid configuration file: ripple.json line 3: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestError_UnwrapAndIs(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := fmt.Errorf("loading: %w", New(CodePersistStore).Wrap(cause))

	if !stderrors.Is(err, cause) {
		t.Errorf("expected errors.Is to reach the cause")
	}
	if !HasCode(err, CodePersistStore) {
		t.Errorf("expected HasCode to match %s", CodePersistStore)
	}
	if HasCode(err, CodePersistDecode) {
		t.Errorf("expected HasCode not to match a different code")
	}

	var e *Error
	if !stderrors.As(err, &e) || e.Category != CategoryPersist {
		t.Errorf("expected errors.As to find the *Error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeComputeFailed) != nil {
		t.Errorf("FromError(nil) should be nil")
	}

	existing := New(CodeScopeClosed)
	if got := FromError(fmt.Errorf("wrapped: %w", existing), CodeComputeFailed); got != existing {
		t.Errorf("expected the existing *Error to be returned")
	}

	plain := stderrors.New("plain")
	got := FromError(plain, CodeComputeFailed)
	if got.Code != CodeComputeFailed || got.Wrapped != plain {
		t.Errorf("expected plain error wrapped under %s, got %+v", CodeComputeFailed, got)
	}
}

func TestFormat(t *testing.T) {
	err := New(CodeConfigInvalid).
		WithDetail(`"inspect.addr" must not be empty`).
		WithSuggestion("set RIPPLE_INSPECT_ADDR").
		Wrap(stderrors.New("empty string"))

	out := err.Format()
	for _, want := range []string{
		"ERROR R102: Invalid configuration value",
		`  "inspect.addr" must not be empty`,
		"  Cause: empty string",
		"  Hint: set RIPPLE_INSPECT_ADDR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("Format() must not contain escape codes:\n%q", out)
	}
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, stderrors.New("boom"))
	if got := buf.String(); got != "\nERROR: boom\n\n" {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	Fprint(&buf, New(CodeScopeClosed))
	if got := buf.String(); got != "\nERROR R002: Scope closed\n\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestPrinterPaint(t *testing.T) {
	if got := (printer{}).paint(ansiRed, "x"); got != "x" {
		t.Errorf("plain printer painted %q", got)
	}
	if got := (printer{color: true}).paint(ansiRed, "x"); got != ansiRed+"x"+ansiReset {
		t.Errorf("color printer returned %q", got)
	}

	t.Setenv("NO_COLOR", "1")
	if colorable(os.Stderr) {
		t.Errorf("NO_COLOR must disable colors")
	}
}

func TestWrapText(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range wrapText(text, 20) {
		if len(line) > 20 {
			t.Errorf("line too long: %q", line)
		}
	}
	if got := wrapText("short text", 70); len(got) != 1 || got[0] != "short text" {
		t.Errorf("expected a single line, got %q", got)
	}
	if wrapText("", 10) != nil {
		t.Errorf("expected nil for empty text")
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("expected registered codes")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("expected sorted codes, got %v", codes)
		}
	}

	Register("R900", Template{Category: CategoryRuntime, Message: "Custom"})
	if tmpl, ok := GetTemplate("R900"); !ok || tmpl.Message != "Custom" {
		t.Errorf("expected registered template, got %+v", tmpl)
	}
}
