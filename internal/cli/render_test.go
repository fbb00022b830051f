package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/framepen/pkg/errors"
	docio "github.com/matzehuels/framepen/pkg/io"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

func testDocument() timedtext.Document {
	return timedtext.Document{
		Pens: []timedtext.Pen{{ID: 0, Color: "#FF0000"}, {ID: 1, Color: "#0000FF"}},
		Blocks: []timedtext.Block{
			{StartMs: 0, DurationMs: 100, Body: `<s p="0">██</s>` + "\n"},
			{StartMs: 100, DurationMs: 200, Body: `<s p="1">██</s>` + "\n"},
		},
	}
}

func TestRunRender(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.v2.json")
	if err := docio.ExportJSON(testDocument(), input); err != nil {
		t.Fatal(err)
	}

	if err := runRender(input, ""); err != nil {
		t.Fatalf("runRender() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "clip.v2.ytt"))
	if err != nil {
		t.Fatalf("default output missing: %v", err)
	}
	if string(data) != string(timedtext.Serialize(testDocument())) {
		t.Errorf("rendered output differs from direct serialization:\n%s", data)
	}
	if !strings.Contains(string(data), `<pen id="1" fc="#0000FF" ft="3" bo="0" ec="0" />`) {
		t.Errorf("pen 1 missing:\n%s", data)
	}
}

func TestRunRenderErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.json")
	if err := docio.ExportJSON(testDocument(), input); err != nil {
		t.Fatal(err)
	}

	if err := runRender(input, input); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("overwriting the input: error = %v, want InvalidPath", err)
	}

	bad := testDocument()
	bad.Blocks[1].StartMs = 50
	badPath := filepath.Join(dir, "bad.json")
	if err := docio.ExportJSON(bad, badPath); err != nil {
		t.Fatal(err)
	}
	if err := runRender(badPath, ""); !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("overlapping blocks: error = %v, want InvalidDocument", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.ytt")); !os.IsNotExist(err) {
		t.Error("no output should be written for an invalid document")
	}
}
