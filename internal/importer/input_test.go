package importer

import (
	"io"
	"strings"
	"testing"
)

// chunkReader yields at most chunk bytes per Read, to exercise sequences
// split across read boundaries.
type chunkReader struct {
	data  []byte
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copied := copy(p, r.data[:n])
	r.data = r.data[copied:]
	return copied, nil
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "barcode,price\nBC1,9.99\n", "barcode,price\nBC1,9.99\n"},
		{"leading BOM stripped", "\xEF\xBB\xBFbarcode,price", "barcode,price"},
		{"BOM only", "\xEF\xBB\xBF", ""},
		{"valid multi-byte preserved", "café,9.99", "café,9.99"},
		{"invalid byte replaced", "caf\xFF,9.99", "caf?,9.99"},
		{"invalid sequence replaced per byte", "x\xC3\x28y", "x?(y"},
		{"shorter than BOM", "ab", "ab"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(sanitizeInput(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_RuneSplitAcrossReads(t *testing.T) {
	// A two-byte rune split across read boundaries must survive intact.
	for chunk := 1; chunk <= 4; chunk++ {
		r := &chunkReader{data: []byte("ab\xC3\xA9cd"), chunk: chunk}
		got, err := io.ReadAll(newUTF8Sanitizer(r))
		if err != nil {
			t.Fatalf("chunk %d: ReadAll error = %v", chunk, err)
		}
		if string(got) != "ab\xC3\xA9cd" {
			t.Errorf("chunk %d: got %q, want %q", chunk, got, "ab\xC3\xA9cd")
		}
	}
}

func TestUTF8Sanitizer_TruncatedRuneAtEOF(t *testing.T) {
	// A sequence cut off by EOF cannot be completed and is replaced.
	got, err := io.ReadAll(newUTF8Sanitizer(strings.NewReader("ab\xC3")))
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if string(got) != "ab?" {
		t.Errorf("got %q, want %q", got, "ab?")
	}
}

func TestBOMSkipper_OnlyLeadingBOM(t *testing.T) {
	// A BOM sequence mid-stream is real data, not a marker.
	got, err := io.ReadAll(newBOMSkipper(strings.NewReader("ab\xEF\xBB\xBFcd")))
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	if string(got) != "ab\xEF\xBB\xBFcd" {
		t.Errorf("got %q, want %q", got, "ab\xEF\xBB\xBFcd")
	}
}
