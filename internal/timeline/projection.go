package timeline

import (
	"fraudcase/internal/models"
	"fraudcase/internal/stages"
)

// Project merges raw entries into one entry per canonical stage for the
// case's current round. The latest completed entry wins; stages not yet reached get a
// synthesized pending placeholder. A completed rejection in the round is
// placed right after report_submitted. Project never mutates the ledger.
func Project(c models.Case, entries []models.TimelineEntry) []models.TimelineEntry {
	latest := make(map[models.Stage]models.TimelineEntry)
	for _, e := range entries {
		if e.Round != c.Round || e.Status != models.EntryCompleted {
			continue
		}
		latest[e.Stage] = e
	}

	out := make([]models.TimelineEntry, 0, len(stages.Canonical)+1)
	for _, stage := range stages.Canonical {
		if e, ok := latest[stage]; ok {
			out = append(out, e)
		} else {
			out = append(out, placeholder(c, stage))
		}

		if stage == models.StageReportSubmitted {
			if rejected, ok := latest[models.StageRejected]; ok {
				out = append(out, rejected)
			}
		}
	}
	return out
}

func placeholder(c models.Case, stage models.Stage) models.TimelineEntry {
	def, _ := stages.Lookup(stage)
	return models.TimelineEntry{
		CaseID:      c.ID,
		Round:       c.Round,
		Stage:       stage,
		Label:       def.Label,
		Status:      models.EntryPending,
		Description: def.Description,
		Synthesized: true,
	}
}

// CurrentStage returns the stage of the most recently completed entry in the
// latest round, which is what a case's status must equal.
func CurrentStage(entries []models.TimelineEntry) (models.Stage, bool) {
	round := 0
	for _, e := range entries {
		if e.Status == models.EntryCompleted && e.Round > round {
			round = e.Round
		}
	}

	var (
		current models.Stage
		found   bool
	)
	for _, e := range entries {
		if e.Status == models.EntryCompleted && e.Round == round {
			current = e.Stage
			found = true
		}
	}
	return current, found
}
