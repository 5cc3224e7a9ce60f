// CLAUDE:SUMMARY ISO 2709 binary MARC reader with per-record fault isolation and raw/decoded text modes.
package marc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ISO 2709 delimiters.
const (
	RecordTerminator   = 0x1D
	FieldTerminator    = 0x1E
	SubfieldDelimiter  = 0x1F
	directoryEntrySize = 12
)

// Mode selects how subfield bytes become strings.
type Mode int

const (
	// ModeDecoded produces valid UTF-8: Unicode records are checked (invalid
	// bytes become U+FFFD) and MARC-8 records are converted.
	ModeDecoded Mode = iota
	// ModeRaw keeps field bytes untouched, for callers that transcode
	// themselves (CESU-8 exports).
	ModeRaw
)

// ErrRecordStructure matches every *RecordStructureError.
var ErrRecordStructure = errors.New("malformed record structure")

// RecordStructureError reports a record that could not be parsed. The
// reader has already skipped past it.
type RecordStructureError struct {
	Index  int   // 0-based position in the input
	Offset int64 // byte offset of the record start
	Reason string
}

func (e *RecordStructureError) Error() string {
	return fmt.Sprintf("record %d (offset %d): %s", e.Index, e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrRecordStructure) hold.
func (e *RecordStructureError) Is(target error) bool { return target == ErrRecordStructure }

// Reader reads binary MARC records one at a time.
type Reader struct {
	br     *bufio.Reader
	mode   Mode
	index  int
	offset int64
}

// NewReader wraps r.
func NewReader(r io.Reader, mode Mode) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), mode: mode}
}

// Next returns the next record, io.EOF at the end of input, or a
// *RecordStructureError for a record that was skipped. Reading may continue
// after a RecordStructureError.
func (r *Reader) Next() (*Record, error) {
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read record %d: %w", r.index, err)
		}
		if b[0] != '\n' && b[0] != '\r' {
			break
		}
		r.br.ReadByte()
		r.offset++
	}

	data, err := r.br.ReadBytes(RecordTerminator)
	start := r.offset
	idx := r.index
	r.offset += int64(len(data))
	r.index++
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read record %d: %w", idx, err)
	}
	if err == io.EOF {
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil, io.EOF
		}
		return nil, &RecordStructureError{Index: idx, Offset: start, Reason: "missing record terminator"}
	}

	rec, reason := parseRecord(data, r.mode)
	if reason != "" {
		return nil, &RecordStructureError{Index: idx, Offset: start, Reason: reason}
	}
	return rec, nil
}

// Decode parses one complete ISO 2709 record.
func Decode(data []byte, mode Mode) (*Record, error) {
	rec, reason := parseRecord(data, mode)
	if reason != "" {
		return nil, &RecordStructureError{Reason: reason}
	}
	return rec, nil
}

func parseRecord(data []byte, mode Mode) (*Record, string) {
	if len(data) < LeaderLength+1 {
		return nil, "record shorter than leader"
	}
	declared, err := strconv.Atoi(string(data[0:5]))
	if err != nil {
		return nil, fmt.Sprintf("invalid record length %q", data[0:5])
	}
	if declared != len(data) {
		return nil, fmt.Sprintf("declared length %d, actual %d", declared, len(data))
	}
	base, err := strconv.Atoi(string(data[12:17]))
	if err != nil {
		return nil, fmt.Sprintf("invalid base address %q", data[12:17])
	}
	if base <= LeaderLength || base > len(data) || data[base-1] != FieldTerminator {
		return nil, fmt.Sprintf("base address %d does not follow the directory", base)
	}

	rec := &Record{Leader: string(data[:LeaderLength])}
	coding := rec.CharacterCoding()
	if mode == ModeDecoded && coding != 'a' {
		// MARC-8 text is held as Unicode from here on.
		rec.SetLeaderByte(9, 'a')
	}
	directory := data[LeaderLength : base-1]
	if len(directory)%directoryEntrySize != 0 {
		return nil, fmt.Sprintf("directory length %d is not a multiple of %d", len(directory), directoryEntrySize)
	}

	for i := 0; i < len(directory); i += directoryEntrySize {
		entry := directory[i : i+directoryEntrySize]
		tag := string(entry[0:3])
		length, err1 := strconv.Atoi(string(entry[3:7]))
		offset, err2 := strconv.Atoi(string(entry[7:12]))
		if err1 != nil || err2 != nil {
			return nil, fmt.Sprintf("invalid directory entry %q", entry)
		}
		start := base + offset
		end := start + length
		if length < 1 || end > len(data) {
			return nil, fmt.Sprintf("field %s out of bounds", tag)
		}
		body := data[start:end]
		if body[len(body)-1] == FieldTerminator {
			body = body[:len(body)-1]
		}

		if IsControlTag(tag) {
			rec.AddField(NewControlField(tag, decodeText(body, coding, mode)))
			continue
		}
		if len(body) < 2 {
			return nil, fmt.Sprintf("field %s has no indicators", tag)
		}
		f := &Field{Tag: tag, Ind1: body[0], Ind2: body[1]}
		for _, chunk := range splitSubfields(body[2:]) {
			if len(chunk) == 0 {
				continue
			}
			f.Subfields = append(f.Subfields, Subfield{
				Code:  string(chunk[0]),
				Value: decodeText(chunk[1:], coding, mode),
			})
		}
		rec.AddField(f)
	}
	return rec, ""
}

func splitSubfields(b []byte) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		if b[0] != SubfieldDelimiter {
			// Data before the first delimiter is dropped.
			next := indexByte(b, SubfieldDelimiter)
			if next < 0 {
				return out
			}
			b = b[next:]
			continue
		}
		b = b[1:]
		next := indexByte(b, SubfieldDelimiter)
		if next < 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b[:next])
		b = b[next:]
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func decodeText(b []byte, coding byte, mode Mode) string {
	if mode == ModeRaw {
		return string(b)
	}
	if coding == 'a' {
		if utf8.Valid(b) {
			return string(b)
		}
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return DecodeMARC8(b)
}
