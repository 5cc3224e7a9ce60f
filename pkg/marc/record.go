// CLAUDE:SUMMARY MARC21 record model: leader, control fields, data fields with indicators and coded subfields.
package marc

import (
	"strings"
)

// Subfield is one coded value inside a data field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Field is either a control field (Value set, tags 001-009) or a data field
// (indicators and subfields).
type Field struct {
	Tag       string     `json:"tag"`
	Ind1      byte       `json:"-"`
	Ind2      byte       `json:"-"`
	Value     string     `json:"value,omitempty"`
	Subfields []Subfield `json:"subfields,omitempty"`
}

// NewControlField builds a control field.
func NewControlField(tag, value string) *Field {
	return &Field{Tag: tag, Value: value}
}

// NewDataField builds a data field. Blank indicators are spaces.
func NewDataField(tag string, ind1, ind2 byte, subfields ...Subfield) *Field {
	return &Field{Tag: tag, Ind1: ind1, Ind2: ind2, Subfields: subfields}
}

// IsControl reports whether the tag is 001-009.
func (f *Field) IsControl() bool {
	return IsControlTag(f.Tag)
}

// IsControlTag reports whether tag names a control field.
func IsControlTag(tag string) bool {
	return len(tag) == 3 && tag[0] == '0' && tag[1] == '0' && tag[2] >= '0' && tag[2] <= '9'
}

// Subfield returns the first value with the given code.
func (f *Field) Subfield(code string) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// SubfieldValues returns every value whose code is in codes, in field order.
// No codes means all subfields.
func (f *Field) SubfieldValues(codes ...string) []string {
	var out []string
	for _, sf := range f.Subfields {
		if len(codes) == 0 || contains(codes, sf.Code) {
			out = append(out, sf.Value)
		}
	}
	return out
}

// SetSubfield replaces the value of the i-th subfield, keeping its code.
func (f *Field) SetSubfield(i int, value string) {
	f.Subfields[i].Value = value
}

// String renders the field in .mrk line syntax without the leading '='.
func (f *Field) String() string {
	var b strings.Builder
	b.WriteString(f.Tag)
	b.WriteString("  ")
	if f.IsControl() {
		b.WriteString(strings.ReplaceAll(f.Value, " ", `\`))
		return b.String()
	}
	b.WriteByte(mrkIndicator(f.Ind1))
	b.WriteByte(mrkIndicator(f.Ind2))
	for _, sf := range f.Subfields {
		b.WriteByte('$')
		b.WriteString(sf.Code)
		b.WriteString(sf.Value)
	}
	return b.String()
}

func mrkIndicator(b byte) byte {
	if b == ' ' || b == 0 {
		return '\\'
	}
	return b
}

// Record is a leader plus an ordered list of fields.
type Record struct {
	Leader string   `json:"leader"`
	Fields []*Field `json:"fields"`
}

// LeaderLength is the fixed size of a MARC21 leader.
const LeaderLength = 24

// GetFields returns the fields with any of the given tags, in record order.
// No tags means all fields.
func (r *Record) GetFields(tags ...string) []*Field {
	var out []*Field
	for _, f := range r.Fields {
		if len(tags) == 0 || contains(tags, f.Tag) {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the first field with the tag, or nil.
func (r *Record) Field(tag string) *Field {
	for _, f := range r.Fields {
		if f.Tag == tag {
			return f
		}
	}
	return nil
}

// AddField appends f.
func (r *Record) AddField(f *Field) {
	r.Fields = append(r.Fields, f)
}

// ControlNumber returns the 001 value, or "" when absent.
func (r *Record) ControlNumber() string {
	if f := r.Field("001"); f != nil {
		return strings.TrimSpace(f.Value)
	}
	return ""
}

// CharacterCoding returns leader/09: 'a' for UCS/Unicode, ' ' for MARC-8.
func (r *Record) CharacterCoding() byte {
	if len(r.Leader) < 10 {
		return ' '
	}
	return r.Leader[9]
}

// SetLeaderByte overwrites one leader position, padding the leader if needed.
func (r *Record) SetLeaderByte(pos int, b byte) {
	leader := []byte(r.Leader)
	for len(leader) < LeaderLength {
		leader = append(leader, ' ')
	}
	leader[pos] = b
	r.Leader = string(leader)
}

// String renders the record in .mrk syntax.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString("=LDR  ")
	b.WriteString(strings.ReplaceAll(r.Leader, " ", `\`))
	b.WriteByte('\n')
	for _, f := range r.Fields {
		b.WriteByte('=')
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
