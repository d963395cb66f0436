package extractors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

func TestRegistry_RoutesByMIMEType(t *testing.T) {
	reg := NewDefaultRegistry()
	ctx := context.Background()

	text, err := reg.Extract(ctx, []byte("plain content"), "text/plain")
	if err != nil {
		t.Fatalf("extract plain: %v", err)
	}
	if text != "plain content" {
		t.Errorf("got %q", text)
	}

	text, err = reg.Extract(ctx, []byte("# Title\n\nSome **bold** prose."), "text/markdown")
	if err != nil {
		t.Fatalf("extract markdown: %v", err)
	}
	if text != "Title\n\nSome bold prose." {
		t.Errorf("got %q", text)
	}
}

func TestRegistry_UnknownMIMEType(t *testing.T) {
	reg := NewDefaultRegistry()

	_, err := reg.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPlaintext_NormalisesLineEndings(t *testing.T) {
	text, err := NewPlaintext().Extract(context.Background(), []byte("a\r\nb"), "text/plain")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "a\nb" {
		t.Errorf("got %q", text)
	}
}

func TestPlaintext_RejectsInvalidUTF8(t *testing.T) {
	_, err := NewPlaintext().Extract(context.Background(), []byte{0xff, 0xfe}, "text/plain")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestMarkdown_StripsFormatting(t *testing.T) {
	in := "# Heading\n\n- item one\n- item two\n\n[link](https://example.com) and `code`.\n\n```go\nfunc main() {}\n```\n"
	text, err := NewMarkdown().Extract(context.Background(), []byte(in), "text/markdown")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "Heading\n\nitem one\nitem two\n\nlink and ."
	if text != want {
		t.Errorf("got %q, want %q", text, want)
	}
}

func TestRegistry_SupportedMIMETypesSorted(t *testing.T) {
	types := NewDefaultRegistry().SupportedMIMETypes()
	if len(types) == 0 {
		t.Fatal("expected registered MIME types")
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] >= types[i] {
			t.Errorf("types not sorted: %q before %q", types[i-1], types[i])
		}
	}
}
