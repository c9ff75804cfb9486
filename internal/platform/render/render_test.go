package render

import (
	"strings"
	"testing"
)

func TestTextMissingKey(t *testing.T) {
	if _, err := Text("t", "hi {{.Name}}", map[string]string{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	got, err := Text("t", "hi {{.Name}}", map[string]string{"Name": "Sam"})
	if err != nil || got != "hi Sam" {
		t.Fatalf("Text: got=%q err=%v", got, err)
	}
}

func TestMarkdownHTMLDropsRawHTML(t *testing.T) {
	out := MarkdownHTML("**Run 5k**\n\n<script>alert(1)</script>")
	if !strings.Contains(out, "<strong>Run 5k</strong>") {
		t.Fatalf("bold not rendered: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("raw html leaked: %s", out)
	}
}

func TestMarkdownHTMLLinksOnlySafeSchemes(t *testing.T) {
	out := MarkdownHTML("[proof](javascript:alert(1)) and [repo](https://github.com/ada/engine)")
	if strings.Contains(out, `href="javascript:`) {
		t.Fatalf("unsafe link rendered as anchor: %s", out)
	}
	if !strings.Contains(out, `href="https://github.com/ada/engine"`) {
		t.Fatalf("safe link dropped: %s", out)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q,%d): want=%q got=%q", tc.in, tc.n, tc.want, got)
		}
	}
}
