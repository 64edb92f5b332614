package history

import (
	"time"

	"github.com/promptline-ai/promptline/internal/agent"
	"github.com/promptline-ai/promptline/internal/memory"
)

// FromRun converts a finished run into a transcript.
func FromRun(task string, started time.Time, steps []memory.Step, out agent.Outcome) *Transcript {
	t := &Transcript{
		Task:      task,
		Outcome:   out.State.String(),
		Summary:   out.Summary,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
	if out.State == agent.Aborted {
		t.Outcome = string(out.Reason)
	}

	for _, step := range steps {
		rec := StepRecord{Kind: step.Kind.String()}
		switch step.Kind {
		case memory.Thought:
			rec.Text = step.Text
		case memory.Action:
			if step.Call != nil {
				rec.Tool = step.Call.Tool
				if step.Call.Arguments != nil {
					rec.Args = step.Call.Arguments.Canonical()
				}
			}
		case memory.Observation:
			if step.Result != nil {
				rec.Success = step.Result.Success
				rec.Output = step.Result.Payload
				rec.Error = step.Result.Message
			}
		}
		t.Steps = append(t.Steps, rec)
	}
	return t
}
