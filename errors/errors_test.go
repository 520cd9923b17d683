package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindInvalidInput,
				Path:   []string{"options", "width"},
				Detail: "width must be positive",
			},
			contains: []string{"[encode]", "invalid_input", "options.width", "width must be positive"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "status code",
			err: &Error{
				Phase:     PhaseRender,
				Kind:      KindUnknownStatus,
				Status:    42,
				HasStatus: true,
			},
			contains: []string{"[render]", "unknown_status", "status 42"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Trap("render_svg_to_png_with_options", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidInput,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseEncode, Kind: KindInvalidInput}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindInvalidInput}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("phase-less sentinel should match any phase")
	}
	if errors.Is(err, ErrFontLoad) {
		t.Error("sentinel of another kind should not match")
	}
}

func TestFontLoadSentinelMatchesBothOrigins(t *testing.T) {
	local := FontData(1)
	foreign := FromStatus(StatusFontLoad)

	for _, err := range []error{local, foreign} {
		if !errors.Is(err, ErrFontLoad) {
			t.Errorf("%v should match ErrFontLoad", err)
		}
	}
	if local.Phase == foreign.Phase {
		t.Error("local and foreign font errors should keep distinct phases")
	}
	if strings.Join(local.Path, ".") != "options.fonts[1]" {
		t.Errorf("Path = %v", local.Path)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRender, KindParse).
		Path("document").
		Status(1).
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "svg", "html").
		Build()

	if err.Phase != PhaseRender {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseRender)
	}
	if err.Kind != KindParse {
		t.Errorf("Kind = %v, want %v", err.Kind, KindParse)
	}
	if len(err.Path) != 1 || err.Path[0] != "document" {
		t.Errorf("Path = %v, want [document]", err.Path)
	}
	if !err.HasStatus || err.Status != 1 {
		t.Errorf("Status = %d (%v), want 1", err.Status, err.HasStatus)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected svg, got html" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestFromStatus(t *testing.T) {
	if FromStatus(StatusOK) != nil {
		t.Fatal("status 0 must not produce an error")
	}

	tests := []struct {
		code     int32
		sentinel *Error
		class    Class
	}{
		{StatusParse, ErrParse, ClassDocument},
		{StatusRender, ErrRender, ClassEngine},
		{StatusFontLoad, ErrFontLoad, ClassCaller},
		{StatusOutOfMemory, ErrOutOfMemory, ClassEngine},
		{17, ErrUnknownStatus, ClassEngine},
		{-1, ErrUnknownStatus, ClassEngine},
	}

	for _, tt := range tests {
		t.Run(tt.sentinel.Error(), func(t *testing.T) {
			err := FromStatus(tt.code)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("FromStatus(%d) = %v, want kind %s", tt.code, err, tt.sentinel.Kind)
			}
			if err.Phase != PhaseRender {
				t.Errorf("Phase = %v, want render", err.Phase)
			}
			code, ok := StatusOf(err)
			if !ok || code != tt.code {
				t.Errorf("StatusOf = %d, %v; want %d", code, ok, tt.code)
			}
			if got := ClassOf(err); got != tt.class {
				t.Errorf("ClassOf = %v, want %v", got, tt.class)
			}
		})
	}

	unknown := FromStatus(99)
	if !strings.Contains(unknown.Error(), "99") {
		t.Errorf("unknown status message should carry the code: %s", unknown)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{EmptyDocument(), ClassCaller},
		{FontData(0), ClassCaller},
		{InvalidUTF8(PhaseEncode, nil, []byte{0xff}), ClassCaller},
		{Overflow(PhaseEncode, nil, 1<<40, "s32"), ClassCaller},
		{Trap("render", errors.New("unreachable")), ClassEngine},
		{AllocationFailed(PhaseEncode, 8, 4, nil), ClassHost},
		{errors.New("plain"), ClassHost},
	}

	for _, tt := range tests {
		if got := ClassOf(tt.err); got != tt.want {
			t.Errorf("ClassOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if _, ok := StatusOf(EmptyDocument()); ok {
		t.Error("local errors carry no status")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidUTF8", func(t *testing.T) {
		data := []byte{0xff, 0xfe}
		err := InvalidUTF8(PhaseEncode, []string{"str"}, data)
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %v, should contain hex preview", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseEncode, 1024, 8, nil)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, []string{"output"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(10) {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"width"}, 1<<40, "s32")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		if !errors.Is(Closed("runtime"), ErrClosed) {
			t.Error("Closed should match ErrClosed")
		}
	})
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := NewMissingImportsError([]string{"env#__cxa_thread_atexit_impl"})
		if len(err.Imports) != 1 {
			t.Fatalf("expected 1 import, got %d", len(err.Imports))
		}
		if err.Imports[0].Module != "env" {
			t.Errorf("module = %q, want env", err.Imports[0].Module)
		}
		if err.Imports[0].Function != "__cxa_thread_atexit_impl" {
			t.Errorf("function = %q", err.Imports[0].Function)
		}
	})

	t.Run("grouped by module", func(t *testing.T) {
		err := NewMissingImportsError([]string{
			"env#abort",
			"wbg#__wbindgen_throw",
			"env#emscripten_memcpy_big",
		})
		msg := err.Error()
		for _, want := range []string{"3", "env:", "wbg:", "abort", "emscripten_memcpy_big"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error %q should contain %q", msg, want)
			}
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := NewMissingImportsError([]string{})
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("empty error should have specific message, got: %s", err)
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingImportsError([]string{"ns#fn"})
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should match MissingImportsError")
		}
	})
}

func TestDemangleRust(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abort", "abort"},
		{"_ZN4core3ptr8write_fn17ha1b2c3d4e5f67890E", "core::ptr::write_fn"},
		{"_ZN5resvg6render17h0123456789abcdefE", "resvg::render"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := demangleRust(tt.input); got != tt.expected {
				t.Errorf("demangleRust(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
