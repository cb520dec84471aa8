package a2a

import (
	"encoding/json"

	"github.com/goflow/orchestrator/a2a/types"
	"github.com/goflow/orchestrator/xerrors"
)

// TaskOutput is the shape ExtractOutput returns for a Task result (spec
// §4.5): the task id, its status, and an optionally-derived output value.
type TaskOutput struct {
	TaskID string
	Status string
	Output any
}

// ExtractOutput implements the output-extraction rules of spec §4.5.
//
// For a Message result: if there is exactly one text part, its text is
// returned; if multiple text parts, the array of texts is returned; if the
// only informative content is data parts, they are shallow-merged into one
// mapping with later parts winning.
//
// For a Task result: {taskId, status, output} is returned, where output is
// derived by the same rules from the first artifact's parts. A Task with
// no artifacts yields {taskId, status} with a nil Output.
func ExtractOutput(r types.Result) (any, error) {
	switch {
	case r.IsMessage():
		return extractFromParts(r.Parts)
	case r.IsTask():
		out := TaskOutput{TaskID: r.ID, Status: r.Status.State}
		if len(r.Artifacts) > 0 {
			val, err := extractFromParts(r.Artifacts[0].Parts)
			if err != nil {
				return nil, err
			}
			out.Output = val
		}
		return out, nil
	default:
		return nil, xerrors.Execution("unrecognized result kind %q", r.Kind)
	}
}

func extractFromParts(parts []types.Part) (any, error) {
	var texts []string
	dataParts := make([]map[string]any, 0)

	for _, p := range parts {
		switch p.Kind {
		case types.PartKindText:
			texts = append(texts, p.Text)
		case types.PartKindData:
			if len(p.Data) == 0 {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal(p.Data, &m); err != nil {
				return nil, xerrors.Wrap(xerrors.KindExecution, "decoding data part", err)
			}
			dataParts = append(dataParts, m)
		case types.PartKindError:
			return nil, xerrors.Execution("agent returned an error part: %s", p.Error)
		}
	}

	switch {
	case len(texts) == 1:
		return texts[0], nil
	case len(texts) > 1:
		return texts, nil
	case len(dataParts) > 0:
		merged := make(map[string]any)
		for _, m := range dataParts {
			for k, v := range m {
				merged[k] = v
			}
		}
		return merged, nil
	default:
		return nil, nil
	}
}
