package gcp

import (
	"strings"
	"testing"
)

func TestContentTypeForKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"users/1/minor.PNG", "image/png"},
		{"users/1/major.jpeg?v=2", "image/jpeg"},
		{"proof/essay.pdf", "application/pdf"},
		{"proof/notes.md", "text/plain"},
		{"blob", ""},
	}
	for _, tc := range cases {
		if got := ContentTypeForKey(tc.key); got != tc.want {
			t.Fatalf("ContentTypeForKey(%q): want=%q got=%q", tc.key, tc.want, got)
		}
	}
}

func TestReadCapped(t *testing.T) {
	data, err := readCapped(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("readCapped at limit: data=%q err=%v", data, err)
	}
	if _, err := readCapped(strings.NewReader("123456"), 5); err == nil {
		t.Fatalf("readCapped over limit: expected error")
	}
}
