package pipeline

import (
	"path"
	"strings"
)

// File is one record flowing through a stream.
type File struct {
	// Path is the output-relative, slash-separated name.
	Path string
	// Source is where the record was read from, for diagnostics.
	Source    string
	Contents  []byte
	SourceMap *SourceMap
	// Written is set by Dest to the filesystem path the record was written to.
	Written string
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	c := *f
	if f.Contents != nil {
		c.Contents = append([]byte(nil), f.Contents...)
	}
	if f.SourceMap != nil {
		c.SourceMap = f.SourceMap.Clone()
	}
	return &c
}

// Ext returns the extension of Path, including the dot.
func (f *File) Ext() string {
	return path.Ext(f.Path)
}

// Stem returns the base name of Path without its extension.
func (f *File) Stem() string {
	return strings.TrimSuffix(path.Base(f.Path), f.Ext())
}
