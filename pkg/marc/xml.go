// CLAUDE:SUMMARY MARCXML (MARC21 slim) writer; records are streamed inside a single collection element.
package marc

import (
	"bufio"
	"encoding/xml"
	"io"
)

// SlimNamespace is the MARCXML namespace.
const SlimNamespace = "http://www.loc.gov/MARC21/slim"

type xmlRecord struct {
	XMLName       xml.Name          `xml:"record"`
	Leader        string            `xml:"leader"`
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

type xmlControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// XMLWriter writes a MARCXML collection. The opening element is written
// with the first record or at Close, whichever comes first.
type XMLWriter struct {
	w       *bufio.Writer
	enc     *xml.Encoder
	started bool
}

// NewXMLWriter wraps w.
func NewXMLWriter(w io.Writer) *XMLWriter {
	bw := bufio.NewWriter(w)
	enc := xml.NewEncoder(bw)
	enc.Indent("  ", "  ")
	return &XMLWriter{w: bw, enc: enc}
}

func (xw *XMLWriter) start() error {
	if xw.started {
		return nil
	}
	xw.started = true
	_, err := xw.w.WriteString(xml.Header + `<collection xmlns="` + SlimNamespace + `">`)
	return err
}

func (xw *XMLWriter) Write(rec *Record) error {
	if err := xw.start(); err != nil {
		return err
	}
	x := xmlRecord{Leader: rec.Leader}
	for _, f := range rec.Fields {
		if f.IsControl() {
			x.ControlFields = append(x.ControlFields, xmlControlField{Tag: f.Tag, Value: f.Value})
			continue
		}
		df := xmlDataField{Tag: f.Tag, Ind1: string(indicator(f.Ind1)), Ind2: string(indicator(f.Ind2))}
		for _, sf := range f.Subfields {
			df.Subfields = append(df.Subfields, xmlSubfield{Code: sf.Code, Value: sf.Value})
		}
		x.DataFields = append(x.DataFields, df)
	}
	return xw.enc.Encode(x)
}

func (xw *XMLWriter) Close() error {
	if err := xw.start(); err != nil {
		return err
	}
	if err := xw.enc.Flush(); err != nil {
		return err
	}
	if _, err := xw.w.WriteString("\n</collection>\n"); err != nil {
		return err
	}
	return xw.w.Flush()
}
