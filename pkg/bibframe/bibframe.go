// CLAUDE:SUMMARY Hands cleaned MARCXML to an external XSLT processor (xsltproc) for BIBFRAME RDF/XML, and RDF/XML to riot for Turtle, N-Triples and JSON-LD.
package bibframe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// ErrStylesheetMissing means the marc2bibframe stylesheet is not installed.
var ErrStylesheetMissing = errors.New("bibframe stylesheet not found")

// Transformer turns a MARCXML document into another XML vocabulary.
type Transformer interface {
	Transform(ctx context.Context, marcxml []byte, params map[string]string) ([]byte, error)
}

// XSLTProc runs an xsltproc-compatible command:
//
//	<Processor> --stringparam k v ... <Stylesheet> -
type XSLTProc struct {
	Processor  string
	Stylesheet string
}

// NewXSLTProc checks that the stylesheet exists. An empty processor means
// "xsltproc".
func NewXSLTProc(processor, stylesheet string) (*XSLTProc, error) {
	if processor == "" {
		processor = "xsltproc"
	}
	if stylesheet == "" {
		return nil, ErrStylesheetMissing
	}
	if _, err := os.Stat(stylesheet); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStylesheetMissing, stylesheet)
	}
	return &XSLTProc{Processor: processor, Stylesheet: stylesheet}, nil
}

// Args returns the command line for params, sorted by name.
func (x *XSLTProc) Args(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*3+2)
	for _, k := range keys {
		args = append(args, "--stringparam", k, params[k])
	}
	return append(args, x.Stylesheet, "-")
}

// Transform pipes marcxml through the processor.
func (x *XSLTProc) Transform(ctx context.Context, marcxml []byte, params map[string]string) ([]byte, error) {
	return run(ctx, x.Processor, x.Args(params), marcxml)
}

// ErrConverterMissing means the RDF serialization tool is not on PATH.
var ErrConverterMissing = errors.New("rdf converter not found")

// Serialization names accepted by Riot.Convert.
const (
	Turtle   = "turtle"
	NTriples = "ntriples"
	JSONLD   = "jsonld"
)

// Riot re-serializes RDF/XML with Apache Jena's riot command:
//
//	<Command> --syntax=rdfxml --output=<format>
type Riot struct {
	Command string
}

// NewRiot resolves command on PATH. An empty command means "riot".
func NewRiot(command string) (*Riot, error) {
	if command == "" {
		command = "riot"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConverterMissing, command)
	}
	return &Riot{Command: path}, nil
}

// Convert pipes rdfxml through the converter and returns it in format.
func (r *Riot) Convert(ctx context.Context, rdfxml []byte, format string) ([]byte, error) {
	switch format {
	case Turtle, NTriples, JSONLD:
	default:
		return nil, fmt.Errorf("unsupported rdf serialization %q", format)
	}
	return run(ctx, r.Command, []string{"--syntax=rdfxml", "--output=" + format}, rdfxml)
}

func run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
