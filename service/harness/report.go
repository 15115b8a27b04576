package harness

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Report summarizes one concurrent run.
type Report struct {
	Strategy string
	Workers  int
	Ops      int
	Duration time.Duration

	Inserts  int
	Removes  int
	Counts   int
	Rejected int

	FinalLen       int
	LiveAfterClose int64
	Violations     []string
}

func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Struct converts the report for the results store.
func (r Report) Struct() (*structpb.Struct, error) {
	violations := make([]any, len(r.Violations))
	for i, v := range r.Violations {
		violations[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"strategy":         r.Strategy,
		"workers":          r.Workers,
		"ops":              r.Ops,
		"duration_ms":      float64(r.Duration) / float64(time.Millisecond),
		"inserts":          r.Inserts,
		"removes":          r.Removes,
		"counts":           r.Counts,
		"rejected":         r.Rejected,
		"final_len":        r.FinalLen,
		"live_after_close": r.LiveAfterClose,
		"ok":               r.OK(),
		"violations":       violations,
	})
}
