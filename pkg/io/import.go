package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/framepen/pkg/errors"
	"github.com/matzehuels/framepen/pkg/timedtext"
)

// ReadJSON decodes and validates a JSON document from r. It does not close r.
//
// ReadJSON returns an INVALID_DOCUMENT error if the JSON is malformed, the
// version is unknown, or the document fails validation (sparse pen ids,
// overlapping blocks, spans referencing unknown pens).
func ReadJSON(r io.Reader) (timedtext.Document, error) {
	var data document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return timedtext.Document{}, errors.Wrap(errors.ErrCodeInvalidDocument, err, "decode")
	}
	if data.Version != Version {
		return timedtext.Document{}, errors.New(errors.ErrCodeInvalidDocument, "unsupported document version %d (want %d)", data.Version, Version)
	}

	d := timedtext.Document{Pens: data.Pens, Blocks: data.Blocks}
	if err := d.Validate(); err != nil {
		return timedtext.Document{}, err
	}
	return d, nil
}

// ImportJSON reads a JSON file at path and returns the decoded document.
func ImportJSON(path string) (timedtext.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return timedtext.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
