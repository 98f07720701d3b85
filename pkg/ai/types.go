package ai

import "context"

// NarrativeInput carries the term details a progress narrative is written from.
type NarrativeInput struct {
	StudentName      string
	AdmissionNumber  string
	Department       string
	TermName         string
	ExecutiveSummary string
	AcademicOverview string
	Strengths        string
	Challenges       string
	ConcludingRemark string
}

// NarrativeWriter turns a term update into a short prose summary for sponsors.
type NarrativeWriter interface {
	WriteNarrative(ctx context.Context, input NarrativeInput) (string, error)
}
