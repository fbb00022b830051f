package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/framepen/pkg/timedtext"
)

// Version is the JSON format version written by [WriteJSON].
const Version = 1

type document struct {
	Version int               `json:"version"`
	Pens    []timedtext.Pen   `json:"pens"`
	Blocks  []timedtext.Block `json:"blocks"`
}

// WriteJSON encodes a document as indented JSON and writes it to w.
func WriteJSON(d timedtext.Document, w io.Writer) error {
	out := document{Version: Version, Pens: d.Pens, Blocks: d.Blocks}
	if out.Pens == nil {
		out.Pens = []timedtext.Pen{}
	}
	if out.Blocks == nil {
		out.Blocks = []timedtext.Block{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// MarshalJSON returns the JSON encoding of a document.
func MarshalJSON(d timedtext.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(d, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON writes a document to a JSON file at path.
func ExportJSON(d timedtext.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(d, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
