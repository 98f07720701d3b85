package models

// Report and biography field names.
const (
	ReportFieldFilename  = "Filename"
	ReportFieldPublicID  = "PublicId"
	ReportFieldCreatedAt = "CreatedAt"

	BiographyFieldText        = "Biography"
	BiographyFieldLastUpdated = "LastUpdated"
)

// ReportColumns is the header of the reports file.
var ReportColumns = []string{FieldAdmissionNumber, ReportFieldFilename, ReportFieldPublicID, ReportFieldCreatedAt}

// BiographyColumns is the header of the biographies file.
var BiographyColumns = []string{FieldAdmissionNumber, BiographyFieldText, BiographyFieldLastUpdated}

// Report references a generated or uploaded document held in the blob store.
type Report struct {
	ID              string `json:"_id,omitempty"`
	Key             string `json:"key"`
	AdmissionNumber string `json:"admissionNumber"`
	Filename        string `json:"filename"`
	PublicID        string `json:"publicId"`
	CreatedAt       string `json:"createdAt"`
}

// Fields flattens the report into its stored columns.
func (r Report) Fields() map[string]string {
	return map[string]string{
		FieldAdmissionNumber: r.AdmissionNumber,
		ReportFieldFilename:  r.Filename,
		ReportFieldPublicID:  r.PublicID,
		ReportFieldCreatedAt: r.CreatedAt,
	}
}

// ReportFromFields rebuilds a report from stored columns.
func ReportFromFields(fields map[string]string) Report {
	report := Report{
		ID:              fields[FieldID],
		AdmissionNumber: fields[FieldAdmissionNumber],
		Filename:        fields[ReportFieldFilename],
		PublicID:        fields[ReportFieldPublicID],
		CreatedAt:       fields[ReportFieldCreatedAt],
	}
	report.Key = recordKey(report.ID, report.PublicID)
	return report
}

// Biography is the single free-text biography kept per student.
type Biography struct {
	AdmissionNumber string `json:"admissionNumber"`
	Text            string `json:"biography"`
	LastUpdated     string `json:"lastUpdated"`
}

// Fields flattens the biography into its stored columns.
func (b Biography) Fields() map[string]string {
	return map[string]string{
		FieldAdmissionNumber:      b.AdmissionNumber,
		BiographyFieldText:        b.Text,
		BiographyFieldLastUpdated: b.LastUpdated,
	}
}

// BiographyFromFields rebuilds a biography from stored columns.
func BiographyFromFields(fields map[string]string) Biography {
	return Biography{
		AdmissionNumber: fields[FieldAdmissionNumber],
		Text:            fields[BiographyFieldText],
		LastUpdated:     fields[BiographyFieldLastUpdated],
	}
}
