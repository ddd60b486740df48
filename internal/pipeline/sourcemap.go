package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// SourceMap is a revision 3 source map.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Clone returns a deep copy of m.
func (m *SourceMap) Clone() *SourceMap {
	c := *m
	c.Sources = append([]string(nil), m.Sources...)
	c.SourcesContent = append([]string(nil), m.SourcesContent...)
	c.Names = append([]string(nil), m.Names...)
	return &c
}

// ShiftLines prepends n unmapped generated lines, e.g. after a header was
// inserted above the mapped content.
func (m *SourceMap) ShiftLines(n int) {
	if n <= 0 {
		return
	}
	m.Mappings = strings.Repeat(";", n) + m.Mappings
}

// JSON encodes the map.
func (m *SourceMap) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// DataURI encodes the map as a base64 data URI for inline references.
func (m *SourceMap) DataURI() (string, error) {
	data, err := m.JSON()
	if err != nil {
		return "", err
	}
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// MappingBuilder builds line-granular mappings: every generated line maps
// to column 0 of one original line.
type MappingBuilder struct {
	sb strings.Builder

	// previous segment values; VLQ fields are relative to them
	prevSource, prevLine int
	lines                int
}

// AddLine appends a generated line mapped to line of source.
func (b *MappingBuilder) AddLine(source, line int) {
	if b.lines > 0 {
		b.sb.WriteByte(';')
	}
	b.lines++
	b.sb.WriteString(encodeVLQ(0))
	b.sb.WriteString(encodeVLQ(source - b.prevSource))
	b.sb.WriteString(encodeVLQ(line - b.prevLine))
	b.sb.WriteString(encodeVLQ(0))
	b.prevSource, b.prevLine = source, line
}

// AddUnmapped appends a generated line with no mapping.
func (b *MappingBuilder) AddUnmapped() {
	if b.lines > 0 {
		b.sb.WriteByte(';')
	}
	b.lines++
}

// String returns the encoded mappings.
func (b *MappingBuilder) String() string { return b.sb.String() }

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func encodeVLQ(v int) string {
	n := v << 1
	if v < 0 {
		n = (-v << 1) | 1
	}
	var sb strings.Builder
	for {
		digit := n & 0x1f
		n >>= 5
		if n > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64Digits[digit])
		if n == 0 {
			return sb.String()
		}
	}
}
