package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSONCodec reads and writes the full entity graph as a versioned envelope.
type JSONCodec struct{}

func (JSONCodec) ContentType() string { return "application/json" }
func (JSONCodec) Extension() string   { return "json" }

func (JSONCodec) Encode(env *Envelope) ([]byte, error) {
	out := *env
	if out.Version == "" {
		out.Version = EnvelopeVersion
	}
	if out.ExportDate.IsZero() {
		out.ExportDate = time.Now().UTC()
	}
	if out.Tasks == nil {
		out.Tasks = []TaskRecord{}
	}
	if out.Classes == nil {
		out.Classes = []ClassRecord{}
	}
	if out.TaskTypes == nil {
		out.TaskTypes = []TaskTypeRecord{}
	}
	return json.MarshalIndent(&out, "", "  ")
}

// envelopeWire is the boundary shape of an exported file. Arrays stay raw
// so "present but wrong type" can be told apart from "absent".
type envelopeWire struct {
	Version   string          `json:"version"`
	Tasks     json.RawMessage `json:"tasks"`
	Classes   json.RawMessage `json:"classes"`
	TaskTypes json.RawMessage `json:"taskTypes"`
}

// nestedWire is the variant some clients produce, with the envelope
// wrapped in a rawResponse object. Resolved once here, never downstream.
type nestedWire struct {
	RawResponse *envelopeWire `json:"rawResponse"`
}

func (JSONCodec) Decode(data []byte) (*Decoded, error) {
	var nested nestedWire
	var wire envelopeWire
	if err := json.Unmarshal(data, &nested); err == nil && nested.RawResponse != nil {
		wire = *nested.RawResponse
	} else if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("invalid JSON export file: %w", err)
	}

	out := &Decoded{}
	if wire.Version != "" && wire.Version != EnvelopeVersion {
		out.Warnings = append(out.Warnings, fmt.Sprintf("unrecognized export version %q, attempting import anyway", wire.Version))
	}

	// tasks present but not an array is a hard error; a missing or null
	// array only warns.
	if present(wire.Tasks) {
		if !isArray(wire.Tasks) {
			return nil, fmt.Errorf("invalid JSON export file: tasks is not an array")
		}
		if err := json.Unmarshal(wire.Tasks, &out.Tasks); err != nil {
			return nil, fmt.Errorf("invalid JSON export file: tasks: %w", err)
		}
	} else {
		out.Warnings = append(out.Warnings, "no tasks array found, defaulting to empty")
	}

	if present(wire.Classes) && isArray(wire.Classes) {
		if err := json.Unmarshal(wire.Classes, &out.Classes); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("classes array unreadable, skipping: %v", err))
		}
	} else {
		out.Warnings = append(out.Warnings, "no classes array found, defaulting to empty")
	}

	if present(wire.TaskTypes) && isArray(wire.TaskTypes) {
		if err := json.Unmarshal(wire.TaskTypes, &out.TaskTypes); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("taskTypes array unreadable, skipping: %v", err))
		}
	} else {
		out.Warnings = append(out.Warnings, "no taskTypes array found, defaulting to empty")
	}

	return out, nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
