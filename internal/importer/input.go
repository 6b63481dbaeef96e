package importer

// Streaming input hygiene for multi-million-row CSV files: a BOM-skipping
// reader and an on-the-fly UTF-8 sanitizer, both O(buffer) in memory. The
// loader wraps the source file with sanitizeInput before handing it to the
// CSV reader.

import (
	"io"
	"unicode/utf8"
)

// sanitizeInput wraps a reader with BOM skipping followed by UTF-8
// sanitization. BOM removal must happen first so the sanitizer never sees
// the marker bytes.
func sanitizeInput(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}

// bomSkipper removes a leading UTF-8 BOM (0xEF 0xBB 0xBF), commonly added
// by Windows spreadsheet exports.
type bomSkipper struct {
	reader    io.Reader
	checked   bool
	buf       [3]byte
	bufData   []byte
	bufOffset int
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{reader: r}
}

func (r *bomSkipper) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if n == 0 {
			return 0, err
		}

		if n >= 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			r.bufData = nil
		} else {
			r.bufData = r.buf[:n]
			r.bufOffset = 0
		}

		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if len(r.bufData) > 0 {
			copied := copy(p, r.bufData[r.bufOffset:])
			r.bufOffset += copied
			if r.bufOffset >= len(r.bufData) {
				r.bufData = nil
			}
			if copied < len(p) && err != io.EOF {
				n, err2 := r.reader.Read(p[copied:])
				return copied + n, err2
			}
			return copied, err
		}
	}

	if len(r.bufData) > r.bufOffset {
		copied := copy(p, r.bufData[r.bufOffset:])
		r.bufOffset += copied
		if r.bufOffset >= len(r.bufData) {
			r.bufData = nil
		}
		return copied, nil
	}

	return r.reader.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' as data streams
// through, holding back at most one incomplete multi-byte sequence between
// reads.
type utf8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset

	if n == 0 {
		return 0, err
	}

	if isAllASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// isAllASCII is the fast path: most catalog data is plain ASCII.
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// sanitize cleans data in place and returns the number of valid bytes.
// Replacing with a single '?' instead of U+FFFD keeps the buffer from
// expanding mid-stream. Incomplete trailing sequences are carried over to
// the next read unless atEOF.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTrailingBytes(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && read+size >= len(data) && isIncompleteRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
		} else {
			copy(data[write:], data[read:read+size])
			write += size
			read += size
		}
	}

	return write
}

// incompleteTrailingBytes returns how many bytes at the end of data could
// be the start of an unfinished multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	for i := 1; i <= 3 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0 // continuation byte
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func isIncompleteRune(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return runeLen(data[0]) > len(data)
}
