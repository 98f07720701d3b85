package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
)

func validTermRequest(name string) dto.TermRequest {
	return dto.TermRequest{
		TermName:         name,
		ExecutiveSummary: "Good progress",
		AcademicOverview: "Improved in maths",
		NextTermDate:     "2025-05-05",
		ConcludingRemark: "Keep it up",
	}
}

func TestTermServiceSubmitAndList(t *testing.T) {
	f := newFixture(t)
	svc := NewTermService(f.directory, f.records, f.events, staticMode("CSV"), f.validate, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Submit(ctx, "A123", validTermRequest("Term 1"))
	require.NoError(t, err)
	require.Equal(t, "A123", first.AdmissionNumber)
	require.NotEmpty(t, first.Key)

	_, err = svc.Submit(ctx, "A123", validTermRequest("Term 2"))
	require.NoError(t, err)

	terms := svc.List(ctx, "A123")
	require.Len(t, terms, 2)
	require.Equal(t, "Term 2", terms[0].TermName)

	require.Len(t, f.events.events, 2)
	require.Equal(t, RecordEvent{Kind: "term", Action: ActionCreated, AdmissionNumber: "A123", Key: first.Key, Backend: "CSV"}, f.events.events[0])
}

func TestTermServiceSubmitValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewTermService(f.directory, f.records, f.events, staticMode("CSV"), f.validate, zerolog.Nop())

	payload := validTermRequest("Term 1")
	payload.ConcludingRemark = ""
	_, err := svc.Submit(context.Background(), "A123", payload)
	require.Error(t, err)

	_, err = svc.Submit(context.Background(), "Z999", validTermRequest("Term 1"))
	require.ErrorIs(t, err, ErrStudentNotFound)
	require.Empty(t, f.events.events)
}

func TestTermServiceUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewTermService(f.directory, f.records, f.events, staticMode("CSV"), f.validate, zerolog.Nop())
	ctx := context.Background()

	term, err := svc.Submit(ctx, "A123", validTermRequest("Term 1"))
	require.NoError(t, err)

	err = svc.Update(ctx, "A123", term.Key, dto.TermPatchRequest{"termName": "Renamed"})
	require.ErrorIs(t, err, repository.ErrUpdateUnsupported)

	require.ErrorIs(t, svc.Delete(ctx, "A123", ""), ErrKeyRequired)
	require.NoError(t, svc.Delete(ctx, "A123", term.Key))
	require.ErrorIs(t, svc.Delete(ctx, "A123", term.Key), repository.ErrNotFound)
	require.Empty(t, svc.List(ctx, "A123"))
}

func TestBiographyServiceSanitises(t *testing.T) {
	f := newFixture(t)
	svc := NewBiographyService(f.directory, f.records, f.events, staticMode("CSV"), f.validate, zerolog.Nop())
	ctx := context.Background()

	bio, err := svc.Update(ctx, "A123", dto.BiographyRequest{Biography: "  <b>Loves</b> football & art<script>alert(1)</script> "})
	require.NoError(t, err)
	require.Equal(t, "Loves football & art", bio.Text)

	stored, err := f.records.GetBiography(ctx, "A123")
	require.NoError(t, err)
	require.Equal(t, bio.Text, stored.Text)

	_, err = svc.Update(ctx, "Z999", dto.BiographyRequest{Biography: "x"})
	require.ErrorIs(t, err, ErrStudentNotFound)
	require.Len(t, f.events.events, 1)
}

func TestStudentProfileService(t *testing.T) {
	f := newFixture(t)
	profiles := NewStudentProfileService(f.directory, f.records, staticMode("CSV"), zerolog.Nop())
	ctx := context.Background()

	summaries, err := profiles.Search(ctx, "grace", "")
	require.NoError(t, err)
	require.Equal(t, []dto.StudentSummary{{
		AdmissionNumber: "A123",
		FullName:        "Grace Wanjiru",
		Department:      "Mini India",
		Class:           "Grade 5",
		Photo:           "/images/a123.jpg",
	}}, summaries)

	profile, err := profiles.Profile(ctx, "A123")
	require.NoError(t, err)
	require.Equal(t, "Enjoys reading", profile.Biography)
	require.Empty(t, profile.Terms)
	require.Equal(t, "CSV", profile.Backend)

	_, err = f.records.UpdateBiography(ctx, "A123", "Loves football, art")
	require.NoError(t, err)
	_, err = f.records.AddTerm(ctx, "A123", models.Term{TermName: "Term 1"})
	require.NoError(t, err)

	profile, err = profiles.Profile(ctx, "A123")
	require.NoError(t, err)
	require.Equal(t, "Loves football, art", profile.Biography)
	require.NotEmpty(t, profile.BiographyUpdate)
	require.Len(t, profile.Terms, 1)

	profile, err = profiles.Profile(ctx, "B456")
	require.NoError(t, err)
	require.Equal(t, noBiography, profile.Biography)
	require.Equal(t, "/images/placeholder.jpg", profile.Photo)

	_, err = profiles.Profile(ctx, "Z999")
	require.ErrorIs(t, err, ErrStudentNotFound)
}
