// Package io provides JSON import and export for timed-text documents.
//
// # Overview
//
// A converted [timedtext.Document] can be exported to JSON for inspection,
// hand editing, or processing by external tools, and re-imported to render
// the final timed-text file without decoding the video again.
//
// # JSON Format
//
//	{
//	  "version": 1,
//	  "pens": [
//	    {"id": 0, "color": "#FF0000"},
//	    {"id": 1, "color": "#0000FF"}
//	  ],
//	  "blocks": [
//	    {"start_ms": 0, "duration_ms": 100, "body": "<s p=\"0\">██</s>\n"}
//	  ]
//	}
//
// Pen ids must be dense from 0 and listed in order. Block bodies hold the
// escaped span markup exactly as it will appear in the output, one line per
// grid row.
//
// # Import
//
// Use [ImportJSON] to read a document from a file path, or [ReadJSON] to read
// from any io.Reader. Both validate the document with
// [timedtext.Document.Validate] and reject unknown format versions.
//
// # Export
//
// Use [ExportJSON] to write a document to a file, or [WriteJSON] to write to
// any io.Writer. An export re-imports to an identical document.
//
// [timedtext.Document]: github.com/matzehuels/framepen/pkg/timedtext.Document
// [timedtext.Document.Validate]: github.com/matzehuels/framepen/pkg/timedtext.Document.Validate
package io
