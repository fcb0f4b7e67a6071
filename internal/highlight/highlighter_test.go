package highlight

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"
)

func TestRenderHTMLIncludesLineNumbers(t *testing.T) {
	highlighter := New(Config{})

	output, err := highlighter.Render("package main\n\nfunc main() {}\n", "go", ModeHTML)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !output.Implemented {
		t.Fatalf("expected html mode to be implemented")
	}
	markup := string(output.Data)
	if !strings.Contains(markup, "func") {
		t.Fatalf("expected rendered markup to contain source, got %q", markup)
	}
	if !strings.Contains(markup, ">3<") && !strings.Contains(markup, ">3\n<") {
		t.Fatalf("expected line numbers in markup, got %q", markup)
	}
}

func TestRenderPlainTextDegradesToUnhighlightedMarkup(t *testing.T) {
	highlighter := New(Config{})

	output, err := highlighter.Render("Hello World!", PlainText, ModeHTML)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(string(output.Data), "Hello World!") {
		t.Fatalf("expected plain content in markup, got %q", output.Data)
	}
}

func TestRenderImageProducesPNG(t *testing.T) {
	highlighter := New(Config{Style: "monokai"})

	output, err := highlighter.Render("print('hi')\n\tindented = True\n", "python", ModeImage)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if output.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", output.ContentType)
	}
	decoded, err := png.Decode(bytes.NewReader(output.Data))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if decoded.Bounds().Dx() == 0 || decoded.Bounds().Dy() == 0 {
		t.Fatalf("expected non-empty image bounds")
	}
}

func TestRenderUnknownModeIsNotImplemented(t *testing.T) {
	highlighter := New(Config{})

	output, err := highlighter.Render("x", PlainText, Mode("svg"))
	if err != nil {
		t.Fatalf("unexpected error for unknown mode: %v", err)
	}
	if output.Implemented {
		t.Fatalf("expected unknown mode to be reported as not implemented")
	}
}

func TestRenderRejectsUnsupportedSyntax(t *testing.T) {
	highlighter := New(Config{})

	if _, err := highlighter.Render("x", "brainfudge", ModeHTML); !errors.Is(err, ErrUnsupportedSyntax) {
		t.Fatalf("expected ErrUnsupportedSyntax, got %v", err)
	}
}

func TestLanguageLookups(t *testing.T) {
	if !Supported("go") || Supported("") {
		t.Fatalf("unexpected support table")
	}
	if Name("csharp") != "C#" {
		t.Fatalf("unexpected name %q", Name("csharp"))
	}
	tags := SortedTags()
	for index := 1; index < len(tags); index++ {
		if tags[index-1] > tags[index] {
			t.Fatalf("tags not sorted at %d", index)
		}
	}
}

func TestCSSIsNonEmpty(t *testing.T) {
	css, err := New(Config{}).CSS()
	if err != nil {
		t.Fatalf("css failed: %v", err)
	}
	if len(css) == 0 {
		t.Fatalf("expected stylesheet")
	}
}
