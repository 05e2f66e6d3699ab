package module

import (
	"encoding/json"
	"io"
)

// Exit writes a successful module result.
func Exit(w io.Writer, changed bool, fields map[string]any) error {
	out := merge(fields)
	out["changed"] = changed
	out["failed"] = false
	return write(w, out)
}

// Fail writes a failed module result with the given message.
func Fail(w io.Writer, msg string, fields map[string]any) error {
	out := merge(fields)
	if _, ok := out["changed"]; !ok {
		out["changed"] = false
	}
	out["failed"] = true
	out["msg"] = msg
	return write(w, out)
}

func merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func write(w io.Writer, v map[string]any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
