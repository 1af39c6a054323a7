package pdf

import (
	"bytes"
	"fmt"
	"strings"
)

// writer assembles a PDF body object by object and emits a correct
// xref table and trailer. Object numbers are assigned in insertion
// order starting at 1; object 1 must be the document catalog.
type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func newWriter() *writer {
	w := &writer{}
	w.buf.WriteString("%PDF-1.4\n")
	return w
}

// add appends one indirect object and returns its number.
func (w *writer) add(body []byte) int {
	num := len(w.offsets) + 1
	w.offsets = append(w.offsets, w.buf.Len())
	fmt.Fprintf(&w.buf, "%d 0 obj\n", num)
	w.buf.Write(body)
	w.buf.WriteString("\nendobj\n")
	return num
}

func (w *writer) stream(dict string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", dict, len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}

func (w *writer) finish() []byte {
	xrefPos := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f \n", len(w.offsets)+1)
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(w.offsets)+1, xrefPos)
	return w.buf.Bytes()
}

// escapeText quotes a string for a PDF literal string.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
