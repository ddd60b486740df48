package util

import (
	"reflect"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"src/scss/b.scss":          &fstest.MapFile{Data: []byte("b")},
		"src/scss/a.scss":          &fstest.MapFile{Data: []byte("a")},
		"src/scss/partials/c.scss": &fstest.MapFile{Data: []byte("c")},
		"src/img/logo.png":         &fstest.MapFile{Data: []byte("png")},
		"vendor/lib.php":           &fstest.MapFile{Data: []byte("<?php")},
		"plugin.php":               &fstest.MapFile{Data: []byte("<?php")},
	}
}

func TestExpandGlobs(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "pattern order is preserved",
			patterns: []string{"src/scss/b.scss", "src/scss/a.scss"},
			want:     []string{"src/scss/b.scss", "src/scss/a.scss"},
		},
		{
			name:     "matches of one pattern are sorted",
			patterns: []string{"src/scss/*.scss"},
			want:     []string{"src/scss/a.scss", "src/scss/b.scss"},
		},
		{
			name:     "duplicates reported once at first match",
			patterns: []string{"src/scss/b.scss", "src/scss/**/*.scss"},
			want:     []string{"src/scss/b.scss", "src/scss/a.scss", "src/scss/partials/c.scss"},
		},
		{
			name:     "excludes remove matches",
			patterns: []string{"**/*.php", "!vendor"},
			want:     []string{"plugin.php"},
		},
		{
			name:     "leading ./ is ignored",
			patterns: []string{"./src/img/*"},
			want:     []string{"src/img/logo.png"},
		},
		{
			name:     "no matches",
			patterns: []string{"src/none/*.js"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := ExpandGlobs(testFS(), tt.patterns)
			if err != nil {
				t.Fatalf("ExpandGlobs: %v", err)
			}
			var got []string
			for _, m := range matches {
				got = append(got, m.Path)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandGlobs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandGlobs_InvalidPattern(t *testing.T) {
	if _, err := ExpandGlobs(testFS(), []string{"src/[a"}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestMatchRel(t *testing.T) {
	matches, err := ExpandGlobs(testFS(), []string{"src/scss/**/*.scss"})
	if err != nil {
		t.Fatalf("ExpandGlobs: %v", err)
	}
	var rels []string
	for _, m := range matches {
		rels = append(rels, m.Rel())
	}
	want := []string{"a.scss", "b.scss", "partials/c.scss"}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("Rel() = %v, want %v", rels, want)
	}

	if got := (Match{Path: "plugin.php", Base: "."}).Rel(); got != "plugin.php" {
		t.Errorf("Rel() with root base = %s", got)
	}
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"src/scss/**/*.scss", "src/js/*.js", "!src/scss/vendor"})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"src/scss/a.scss", true},
		{"src/scss/partials/c.scss", true},
		{"src/js/app.js", true},
		{"src/js/lib/app.js", false},
		{"src/scss/vendor/x.scss", false},
		{"src/scss/a.css", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	if got, want := m.Bases(), []string{"src/scss", "src/js"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Bases() = %v, want %v", got, want)
	}
}
