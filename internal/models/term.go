package models

// Field names shared by every record kind.
const (
	FieldAdmissionNumber = "AdmissionNumber"
	FieldID              = "_id"
)

// Term field names, in stored column order.
const (
	TermFieldTermName           = "TermName"
	TermFieldExecutiveSummary   = "ExecutiveSummary"
	TermFieldAcademicOverview   = "AcademicOverview"
	TermFieldAcademicGrade      = "AcademicGrade"
	TermFieldAcademicRank       = "AcademicRank"
	TermFieldAcademicStrengths  = "AcademicStrengths"
	TermFieldAcademicChallenges = "AcademicChallenges"
	TermFieldPersonalSchool     = "PersonalSchool"
	TermFieldPersonalExtra      = "PersonalExtra"
	TermFieldHomeEnvironment    = "HomeEnvironment"
	TermFieldHomeUpdateMethod   = "HomeUpdateMethod"
	TermFieldNextTermDate       = "NextTermDate"
	TermFieldGoalsAcademic      = "GoalsAcademic"
	TermFieldGoalsPersonal      = "GoalsPersonal"
	TermFieldFeesAmount         = "FeesAmount"
	TermFieldFeesDueDate        = "FeesDueDate"
	TermFieldUniformNotes       = "UniformNotes"
	TermFieldBookList           = "BookList"
	TermFieldTransportNotes     = "TransportNotes"
	TermFieldOtherNeeds         = "OtherNeeds"
	TermFieldRecommendAcademic  = "RecommendAcademic"
	TermFieldRecommendMaterial  = "RecommendMaterial"
	TermFieldConcludingRemark   = "ConcludingRemark"
	TermFieldTimestamp          = "Timestamp"
)

// TermColumns is the versioned header of the terms file.
var TermColumns = []string{
	FieldAdmissionNumber,
	TermFieldTermName,
	TermFieldExecutiveSummary,
	TermFieldAcademicOverview,
	TermFieldAcademicGrade,
	TermFieldAcademicRank,
	TermFieldAcademicStrengths,
	TermFieldAcademicChallenges,
	TermFieldPersonalSchool,
	TermFieldPersonalExtra,
	TermFieldHomeEnvironment,
	TermFieldHomeUpdateMethod,
	TermFieldNextTermDate,
	TermFieldGoalsAcademic,
	TermFieldGoalsPersonal,
	TermFieldFeesAmount,
	TermFieldFeesDueDate,
	TermFieldUniformNotes,
	TermFieldBookList,
	TermFieldTransportNotes,
	TermFieldOtherNeeds,
	TermFieldRecommendAcademic,
	TermFieldRecommendMaterial,
	TermFieldConcludingRemark,
	TermFieldTimestamp,
}

// Term is one narrative progress update for a student in one period.
//
// ID carries the document store identifier when the record came from there.
// Key is the value delete and update calls should target: the document
// identifier when present, otherwise the creation timestamp.
type Term struct {
	ID                 string `json:"_id,omitempty"`
	Key                string `json:"key"`
	AdmissionNumber    string `json:"admissionNumber"`
	TermName           string `json:"termName"`
	ExecutiveSummary   string `json:"executiveSummary"`
	AcademicOverview   string `json:"academicOverview"`
	AcademicGrade      string `json:"academicGrade"`
	AcademicRank       string `json:"academicRank"`
	AcademicStrengths  string `json:"academicStrengths"`
	AcademicChallenges string `json:"academicChallenges"`
	PersonalSchool     string `json:"personalSchool"`
	PersonalExtra      string `json:"personalExtra"`
	HomeEnvironment    string `json:"homeEnvironment"`
	HomeUpdateMethod   string `json:"homeUpdateMethod"`
	NextTermDate       string `json:"nextTermDate"`
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
	ConcludingRemark   string `json:"concludingRemark"`
	Timestamp          string `json:"timestamp"`
}

// Fields flattens the term into its stored columns. Every column is present;
// unset narrative fields are stored as empty strings.
func (t Term) Fields() map[string]string {
	return map[string]string{
		FieldAdmissionNumber:        t.AdmissionNumber,
		TermFieldTermName:           t.TermName,
		TermFieldExecutiveSummary:   t.ExecutiveSummary,
		TermFieldAcademicOverview:   t.AcademicOverview,
		TermFieldAcademicGrade:      t.AcademicGrade,
		TermFieldAcademicRank:       t.AcademicRank,
		TermFieldAcademicStrengths:  t.AcademicStrengths,
		TermFieldAcademicChallenges: t.AcademicChallenges,
		TermFieldPersonalSchool:     t.PersonalSchool,
		TermFieldPersonalExtra:      t.PersonalExtra,
		TermFieldHomeEnvironment:    t.HomeEnvironment,
		TermFieldHomeUpdateMethod:   t.HomeUpdateMethod,
		TermFieldNextTermDate:       t.NextTermDate,
		TermFieldGoalsAcademic:      t.GoalsAcademic,
		TermFieldGoalsPersonal:      t.GoalsPersonal,
		TermFieldFeesAmount:         t.FeesAmount,
		TermFieldFeesDueDate:        t.FeesDueDate,
		TermFieldUniformNotes:       t.UniformNotes,
		TermFieldBookList:           t.BookList,
		TermFieldTransportNotes:     t.TransportNotes,
		TermFieldOtherNeeds:         t.OtherNeeds,
		TermFieldRecommendAcademic:  t.RecommendAcademic,
		TermFieldRecommendMaterial:  t.RecommendMaterial,
		TermFieldConcludingRemark:   t.ConcludingRemark,
		TermFieldTimestamp:          t.Timestamp,
	}
}

// TermFromFields rebuilds a term from stored columns.
func TermFromFields(fields map[string]string) Term {
	term := Term{
		ID:                 fields[FieldID],
		AdmissionNumber:    fields[FieldAdmissionNumber],
		TermName:           fields[TermFieldTermName],
		ExecutiveSummary:   fields[TermFieldExecutiveSummary],
		AcademicOverview:   fields[TermFieldAcademicOverview],
		AcademicGrade:      fields[TermFieldAcademicGrade],
		AcademicRank:       fields[TermFieldAcademicRank],
		AcademicStrengths:  fields[TermFieldAcademicStrengths],
		AcademicChallenges: fields[TermFieldAcademicChallenges],
		PersonalSchool:     fields[TermFieldPersonalSchool],
		PersonalExtra:      fields[TermFieldPersonalExtra],
		HomeEnvironment:    fields[TermFieldHomeEnvironment],
		HomeUpdateMethod:   fields[TermFieldHomeUpdateMethod],
		NextTermDate:       fields[TermFieldNextTermDate],
		GoalsAcademic:      fields[TermFieldGoalsAcademic],
		GoalsPersonal:      fields[TermFieldGoalsPersonal],
		FeesAmount:         fields[TermFieldFeesAmount],
		FeesDueDate:        fields[TermFieldFeesDueDate],
		UniformNotes:       fields[TermFieldUniformNotes],
		BookList:           fields[TermFieldBookList],
		TransportNotes:     fields[TermFieldTransportNotes],
		OtherNeeds:         fields[TermFieldOtherNeeds],
		RecommendAcademic:  fields[TermFieldRecommendAcademic],
		RecommendMaterial:  fields[TermFieldRecommendMaterial],
		ConcludingRemark:   fields[TermFieldConcludingRemark],
		Timestamp:          fields[TermFieldTimestamp],
	}
	term.Key = recordKey(term.ID, term.Timestamp)
	return term
}

// TermPatchable reports whether a column may be changed by an update.
func TermPatchable(field string) bool {
	switch field {
	case FieldAdmissionNumber, FieldID, TermFieldTimestamp:
		return false
	}
	for _, column := range TermColumns {
		if column == field {
			return true
		}
	}
	return false
}

func recordKey(id, surrogate string) string {
	if id != "" {
		return id
	}
	return surrogate
}
