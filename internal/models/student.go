package models

import "strings"

// Column names of the student master file.
const (
	StudentColumnAdmissionNumber = "Admission Number"
	StudentColumnFullName        = "Full Name"
	StudentColumnDepartment      = "Department"
	StudentColumnClass           = "Class"
	StudentColumnGender          = "Gender"
	StudentColumnContact         = "Contact"
	StudentColumnPhoto           = "Photo"
	StudentColumnBiography       = "Small Biography"
)

// StudentColumns is the header used when the master file has to be created.
var StudentColumns = []string{
	StudentColumnAdmissionNumber,
	StudentColumnFullName,
	StudentColumnDepartment,
	StudentColumnClass,
	StudentColumnGender,
	StudentColumnContact,
	StudentColumnPhoto,
	StudentColumnBiography,
}

const placeholderPhoto = "/images/placeholder.jpg"

// Student is the read-only master data of a sponsored learner.
type Student struct {
	AdmissionNumber string `gorm:"column:admission_number;primaryKey;size:64" json:"admissionNumber"`
	FullName        string `gorm:"column:full_name;size:255;not null" json:"fullName"`
	Department      string `gorm:"column:department;size:128;index" json:"department"`
	Class           string `gorm:"column:class;size:64" json:"class"`
	Gender          string `gorm:"column:gender;size:32" json:"gender"`
	Contact         string `gorm:"column:contact;size:255" json:"contact"`
	Photo           string `gorm:"column:photo;size:512" json:"photo"`
	SmallBiography  string `gorm:"column:small_biography;type:text" json:"smallBiography"`
}

// TableName pins the master table name.
func (Student) TableName() string {
	return "students"
}

// StudentFromColumns maps a master-file row onto a Student.
func StudentFromColumns(row map[string]string) Student {
	return Student{
		AdmissionNumber: strings.TrimSpace(row[StudentColumnAdmissionNumber]),
		FullName:        row[StudentColumnFullName],
		Department:      row[StudentColumnDepartment],
		Class:           row[StudentColumnClass],
		Gender:          row[StudentColumnGender],
		Contact:         row[StudentColumnContact],
		Photo:           row[StudentColumnPhoto],
		SmallBiography:  row[StudentColumnBiography],
	}
}

// PhotoURL normalises the stored photo reference into a servable path.
func (s Student) PhotoURL() string {
	photo := strings.TrimSpace(s.Photo)
	if photo == "" || photo == "static/images/" {
		return placeholderPhoto
	}
	if strings.HasPrefix(photo, "static/") {
		photo = "/" + strings.TrimPrefix(photo, "static/")
	}
	if strings.HasPrefix(photo, "/images/") || strings.HasPrefix(photo, "http") {
		return photo
	}
	if !strings.HasPrefix(photo, "/") {
		return "/images/" + photo
	}
	return photo
}

// Matches reports whether the student satisfies a case-insensitive name or
// admission number query and a department filter.
func (s Student) Matches(query, department string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	department = strings.ToLower(strings.TrimSpace(department))

	if query != "" &&
		!strings.Contains(strings.ToLower(s.FullName), query) &&
		!strings.Contains(strings.ToLower(s.AdmissionNumber), query) {
		return false
	}
	if department != "" && !strings.Contains(strings.ToLower(s.Department), department) {
		return false
	}
	return true
}
