package dto

import "github.com/noah-isme/sponsor-portal-api/internal/models"

// TermRequest is the payload for submitting a term update.
type TermRequest struct {
	TermName           string `json:"termName" validate:"required,max=128"`
	ExecutiveSummary   string `json:"executiveSummary" validate:"required"`
	AcademicOverview   string `json:"academicOverview" validate:"required"`
	AcademicGrade      string `json:"academicGrade"`
	AcademicRank       string `json:"academicRank"`
	AcademicStrengths  string `json:"academicStrengths"`
	AcademicChallenges string `json:"academicChallenges"`
	PersonalSchool     string `json:"personalSchool"`
	PersonalExtra      string `json:"personalExtra"`
	HomeEnvironment    string `json:"homeEnvironment"`
	HomeUpdateMethod   string `json:"homeUpdateMethod"`
	NextTermDate       string `json:"nextTermDate" validate:"required"`
	GoalsAcademic      string `json:"goalsAcademic"`
	GoalsPersonal      string `json:"goalsPersonal"`
	FeesAmount         string `json:"feesAmount"`
	FeesDueDate        string `json:"feesDueDate"`
	UniformNotes       string `json:"uniformNotes"`
	BookList           string `json:"bookList"`
	TransportNotes     string `json:"transportNotes"`
	OtherNeeds         string `json:"otherNeeds"`
	RecommendAcademic  string `json:"recommendAcademic"`
	RecommendMaterial  string `json:"recommendMaterial"`
	ConcludingRemark   string `json:"concludingRemark" validate:"required"`
}

// Term converts the request into a term record.
func (r TermRequest) Term() models.Term {
	return models.Term{
		TermName:           r.TermName,
		ExecutiveSummary:   r.ExecutiveSummary,
		AcademicOverview:   r.AcademicOverview,
		AcademicGrade:      r.AcademicGrade,
		AcademicRank:       r.AcademicRank,
		AcademicStrengths:  r.AcademicStrengths,
		AcademicChallenges: r.AcademicChallenges,
		PersonalSchool:     r.PersonalSchool,
		PersonalExtra:      r.PersonalExtra,
		HomeEnvironment:    r.HomeEnvironment,
		HomeUpdateMethod:   r.HomeUpdateMethod,
		NextTermDate:       r.NextTermDate,
		GoalsAcademic:      r.GoalsAcademic,
		GoalsPersonal:      r.GoalsPersonal,
		FeesAmount:         r.FeesAmount,
		FeesDueDate:        r.FeesDueDate,
		UniformNotes:       r.UniformNotes,
		BookList:           r.BookList,
		TransportNotes:     r.TransportNotes,
		OtherNeeds:         r.OtherNeeds,
		RecommendAcademic:  r.RecommendAcademic,
		RecommendMaterial:  r.RecommendMaterial,
		ConcludingRemark:   r.ConcludingRemark,
	}
}

// TermPatchRequest maps JSON field names to new values.
type TermPatchRequest map[string]string

// termJSONFields maps request field names onto stored columns.
var termJSONFields = map[string]string{
	"termName":           models.TermFieldTermName,
	"executiveSummary":   models.TermFieldExecutiveSummary,
	"academicOverview":   models.TermFieldAcademicOverview,
	"academicGrade":      models.TermFieldAcademicGrade,
	"academicRank":       models.TermFieldAcademicRank,
	"academicStrengths":  models.TermFieldAcademicStrengths,
	"academicChallenges": models.TermFieldAcademicChallenges,
	"personalSchool":     models.TermFieldPersonalSchool,
	"personalExtra":      models.TermFieldPersonalExtra,
	"homeEnvironment":    models.TermFieldHomeEnvironment,
	"homeUpdateMethod":   models.TermFieldHomeUpdateMethod,
	"nextTermDate":       models.TermFieldNextTermDate,
	"goalsAcademic":      models.TermFieldGoalsAcademic,
	"goalsPersonal":      models.TermFieldGoalsPersonal,
	"feesAmount":         models.TermFieldFeesAmount,
	"feesDueDate":        models.TermFieldFeesDueDate,
	"uniformNotes":       models.TermFieldUniformNotes,
	"bookList":           models.TermFieldBookList,
	"transportNotes":     models.TermFieldTransportNotes,
	"otherNeeds":         models.TermFieldOtherNeeds,
	"recommendAcademic":  models.TermFieldRecommendAcademic,
	"recommendMaterial":  models.TermFieldRecommendMaterial,
	"concludingRemark":   models.TermFieldConcludingRemark,
}

// Columns translates the patch into stored column names. Stored column names
// are accepted as-is; unknown names pass through so the repository can reject them.
func (p TermPatchRequest) Columns() map[string]string {
	columns := make(map[string]string, len(p))
	for field, value := range p {
		if column, ok := termJSONFields[field]; ok {
			columns[column] = value
			continue
		}
		columns[field] = value
	}
	return columns
}

// BiographyRequest is the payload for replacing a biography.
type BiographyRequest struct {
	Biography string `json:"biography" validate:"max=5000"`
}

// StudentSummary is one entry of the student directory listing.
type StudentSummary struct {
	AdmissionNumber string `json:"admissionNumber"`
	FullName        string `json:"fullName"`
	Department      string `json:"department"`
	Class           string `json:"class"`
	Photo           string `json:"photo"`
}

// StudentProfileResponse joins master data with the student's records.
type StudentProfileResponse struct {
	AdmissionNumber string          `json:"admissionNumber"`
	FullName        string          `json:"fullName"`
	Department      string          `json:"department"`
	Class           string          `json:"class"`
	Gender          string          `json:"gender"`
	Contact         string          `json:"contact"`
	Photo           string          `json:"photo"`
	Biography       string          `json:"biography"`
	BiographyUpdate string          `json:"biographyUpdatedAt,omitempty"`
	Terms           []models.Term   `json:"terms"`
	Reports         []models.Report `json:"reports"`
	Backend         string          `json:"backend"`
}

// GeneratedReportResponse describes a report that was rendered and stored.
type GeneratedReportResponse struct {
	Report      models.Report `json:"report"`
	DownloadURL string        `json:"downloadUrl"`
	Narrative   bool          `json:"narrative"`
}

// UploadResponse describes a file stored in the blob store.
type UploadResponse struct {
	Kind      string         `json:"kind"`
	PublicID  string         `json:"publicId"`
	URL       string         `json:"url"`
	Filename  string         `json:"filename"`
	Note      string         `json:"note,omitempty"`
	MimeType  string         `json:"mimeType"`
	SizeBytes int64          `json:"sizeBytes"`
	Report    *models.Report `json:"report,omitempty"`
}
