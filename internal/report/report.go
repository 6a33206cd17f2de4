// Package report encodes starred repositories into the line-oriented
// stars.txt format and parses them back.
package report

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"strconv"
	"strings"
)

const (
	// Marker starts every record block.
	Marker = "Repository ["

	// Delimiter ends every record block.
	Delimiter = "----------------------------------------"

	// NotAvailable is written for missing optional fields.
	NotAvailable = "N/A"

	indexSep = "]: "
)

// Record is one starred repository as written to the report.
type Record struct {
	Index     int
	FullName  string
	SourceURL string
	Homepage  *string
	Stars     int
	Language  *string
	Topics    []string
}

// Entry is the part of a record needed to unstar it.
type Entry struct {
	Index    int
	FullName string
}

// OwnerName splits FullName on the first "/".
func (e Entry) OwnerName() (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(e.FullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// Range is a closed interval of record indices.
type Range struct {
	Start int
	End   int
}

// FullRange matches every record.
func FullRange() Range {
	return Range{Start: 1, End: math.MaxInt}
}

// Contains .
func (r Range) Contains(index int) bool {
	return index >= r.Start && index <= r.End
}

// Encode writes one record block to w.
func Encode(w io.Writer, r Record) error {
	_, err := fmt.Fprintf(w,
		"Repository [%d]: %s\nSVN URL: %s\nHomepage: %s\nStars: %d\nLanguage: %s\nTopics: %s\n%s\n",
		r.Index,
		r.FullName,
		r.SourceURL,
		orNA(r.Homepage),
		r.Stars,
		orNA(r.Language),
		topics(r.Topics),
		Delimiter,
	)
	return err
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return NotAvailable
	}
	return *s
}

func topics(t []string) string {
	if len(t) == 0 {
		return NotAvailable
	}
	return strings.Join(t, ", ")
}

// Parse recovers the ordered entries of a report. Text before the first
// marker is ignored, as are blocks whose index cannot be read.
func Parse(text string) []Entry {
	blocks := strings.Split(text, Marker)
	entries := make([]Entry, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		line := block
		if i := strings.IndexByte(block, '\n'); i >= 0 {
			line = block[:i]
		}
		line = strings.TrimRight(line, "\r")

		head, name, ok := strings.Cut(line, indexSep)
		if !ok {
			continue
		}
		index, ok := LeadingInt(head)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Index: index, FullName: name})
	}
	return entries
}

// Filter returns the entries inside r, keeping their order.
func Filter(entries []Entry, r Range) []Entry {
	var out []Entry
	for _, e := range entries {
		if r.Contains(e.Index) {
			out = append(out, e)
		}
	}
	return out
}

// ReadFile returns the report stored at path.
func ReadFile(path string) (string, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LeadingInt parses the optionally signed run of digits at the start of s,
// after leading whitespace. Trailing characters are ignored.
func LeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Writer assigns sequential indices, starting at 1, to the records it
// writes.
type Writer struct {
	w    *bufio.Writer
	next int
}

// NewWriter .
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), next: 1}
}

// Write numbers r and encodes it.
func (w *Writer) Write(r Record) error {
	r.Index = w.next
	if err := Encode(w.w, r); err != nil {
		return err
	}
	w.next++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.next - 1
}

// Flush .
func (w *Writer) Flush() error {
	return w.w.Flush()
}
