// CLAUDE:SUMMARY Record writers: ISO 2709 binary, .mrk text, and a common Writer interface for output fan-out.
package marc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Writer emits records in one output format.
type Writer interface {
	Write(rec *Record) error
	// Close flushes buffered output and writes any trailer. It does not close
	// the underlying io.Writer.
	Close() error
}

// ErrRecordTooLarge is returned when an encoded record exceeds 99999 bytes.
var ErrRecordTooLarge = errors.New("record exceeds 99999 bytes")

// Encode serializes rec as ISO 2709. Leader positions 00-04 and 12-16 are
// recomputed; the rest of the leader is kept.
func Encode(rec *Record) ([]byte, error) {
	var directory, body bytes.Buffer
	for _, f := range rec.Fields {
		start := body.Len()
		if f.IsControl() {
			body.WriteString(f.Value)
		} else {
			body.WriteByte(indicator(f.Ind1))
			body.WriteByte(indicator(f.Ind2))
			for _, sf := range f.Subfields {
				body.WriteByte(SubfieldDelimiter)
				body.WriteString(sf.Code)
				body.WriteString(sf.Value)
			}
		}
		body.WriteByte(FieldTerminator)
		length := body.Len() - start
		if length > 9999 || start > 99999 {
			return nil, fmt.Errorf("field %s: %w", f.Tag, ErrRecordTooLarge)
		}
		fmt.Fprintf(&directory, "%3.3s%04d%05d", f.Tag, length, start)
	}
	directory.WriteByte(FieldTerminator)

	base := LeaderLength + directory.Len()
	total := base + body.Len() + 1
	if total > 99999 {
		return nil, ErrRecordTooLarge
	}

	leader := []byte(rec.Leader)
	for len(leader) < LeaderLength {
		leader = append(leader, ' ')
	}
	leader = leader[:LeaderLength]
	copy(leader[0:5], fmt.Sprintf("%05d", total))
	copy(leader[12:17], fmt.Sprintf("%05d", base))
	// Indicator count, subfield code length and entry map are fixed in MARC21.
	leader[10], leader[11] = '2', '2'
	copy(leader[20:24], "4500")

	out := make([]byte, 0, total)
	out = append(out, leader...)
	out = append(out, directory.Bytes()...)
	out = append(out, body.Bytes()...)
	out = append(out, RecordTerminator)
	return out, nil
}

func indicator(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}

// BinaryWriter writes ISO 2709 records.
type BinaryWriter struct {
	w *bufio.Writer
}

// NewBinaryWriter wraps w.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: bufio.NewWriter(w)}
}

func (bw *BinaryWriter) Write(rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	_, err = bw.w.Write(data)
	return err
}

func (bw *BinaryWriter) Close() error { return bw.w.Flush() }

// TextWriter writes the MarcEdit .mrk line format, one blank line between
// records.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter wraps w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

func (tw *TextWriter) Write(rec *Record) error {
	if _, err := tw.w.WriteString(rec.String()); err != nil {
		return err
	}
	return tw.w.WriteByte('\n')
}

func (tw *TextWriter) Close() error { return tw.w.Flush() }
