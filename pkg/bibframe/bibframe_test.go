package bibframe

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func writeStylesheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marc2bibframe2.xsl")
	if err := os.WriteFile(path, []byte("<xsl:stylesheet/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewXSLTProc_Missing(t *testing.T) {
	if _, err := NewXSLTProc("", ""); !errors.Is(err, ErrStylesheetMissing) {
		t.Errorf("empty path: err = %v", err)
	}
	if _, err := NewXSLTProc("", filepath.Join(t.TempDir(), "none.xsl")); !errors.Is(err, ErrStylesheetMissing) {
		t.Errorf("absent file: err = %v", err)
	}
}

func TestArgs(t *testing.T) {
	xsl := writeStylesheet(t)
	x, err := NewXSLTProc("", xsl)
	if err != nil {
		t.Fatal(err)
	}
	if x.Processor != "xsltproc" {
		t.Errorf("Processor = %q", x.Processor)
	}
	got := strings.Join(x.Args(map[string]string{"pGenerationDatestamp": "2024", "baseuri": "http://example.org/"}), " ")
	want := "--stringparam baseuri http://example.org/ --stringparam pGenerationDatestamp 2024 " + xsl + " -"
	if got != want {
		t.Errorf("Args = %q\nwant %q", got, want)
	}
}

func TestTransform_RunsProcessor(t *testing.T) {
	// The fake processor ignores its arguments and copies stdin to stdout.
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	script := filepath.Join(t.TempDir(), "proc.sh")
	if err := os.WriteFile(script, []byte("#!"+sh+"\ncat\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	x, err := NewXSLTProc(script, writeStylesheet(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := x.Transform(context.Background(), []byte("<collection/>"), nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if string(out) != "<collection/>" {
		t.Errorf("out = %q", out)
	}
}

func TestTransform_ProcessorFailure(t *testing.T) {
	x := &XSLTProc{Processor: filepath.Join(t.TempDir(), "no-such-binary"), Stylesheet: "x.xsl"}
	if _, err := x.Transform(context.Background(), nil, nil); err == nil {
		t.Error("missing processor should fail")
	}
}

// fakeCommand writes an executable sh script with the given body.
func fakeCommand(t *testing.T, name, body string) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!"+sh+"\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewRiot_Missing(t *testing.T) {
	if _, err := NewRiot(filepath.Join(t.TempDir(), "no-riot")); !errors.Is(err, ErrConverterMissing) {
		t.Errorf("err = %v, want ErrConverterMissing", err)
	}
}

func TestRiot_Convert(t *testing.T) {
	// Echo the arguments, then the input, so both can be checked.
	cmd := fakeCommand(t, "riot", `echo "$@"; cat`)
	r, err := NewRiot(cmd)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct{ format, want string }{
		{Turtle, "--syntax=rdfxml --output=turtle\n<rdf:RDF/>"},
		{NTriples, "--syntax=rdfxml --output=ntriples\n<rdf:RDF/>"},
		{JSONLD, "--syntax=rdfxml --output=jsonld\n<rdf:RDF/>"},
	}
	for _, tt := range tests {
		out, err := r.Convert(context.Background(), []byte("<rdf:RDF/>"), tt.format)
		if err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		if string(out) != tt.want {
			t.Errorf("%s: out = %q, want %q", tt.format, out, tt.want)
		}
	}
	if _, err := r.Convert(context.Background(), nil, "rdfa"); err == nil {
		t.Error("unknown serialization accepted")
	}
}

func TestRiot_ConvertFailure(t *testing.T) {
	r, err := NewRiot(fakeCommand(t, "riot", `echo "bad input" >&2; exit 1`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Convert(context.Background(), []byte("x"), Turtle)
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Errorf("err = %v, want stderr in message", err)
	}
}
