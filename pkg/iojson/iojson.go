// Package iojson prints machine-readable command output. Every command
// with a --json mode funnels through WriteWith, so scripts get exactly
// one indented JSON document on stdout and nothing else.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// marshalFailure builds the diagnostic document by hand; the failure
// path cannot depend on a marshal that can itself fail.
func marshalFailure(err error) string {
	detail, _ := json.Marshal(err.Error())
	return fmt.Sprintf(`{"error":"marshal failed","detail":%s}`, detail)
}

// WriteWith marshals obj as indented JSON onto w. A value that cannot
// be marshalled writes a diagnostic to ew instead, keeping w free of
// partial documents, and the marshal error is returned.
func WriteWith(w, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		fmt.Fprintln(ew, marshalFailure(err))
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write is WriteWith on stdout and stderr.
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}
