package roster

import (
	"path/filepath"
	"strings"

	"dashboard/internal/attendance"
	"dashboard/internal/backend"
	"dashboard/internal/validation"
)

// StudentInput is the single-student form.
type StudentInput struct {
	NationalID string `json:"nationalId" validate:"required"`
	Name       string `json:"name" validate:"required,min=2"`
	Department string `json:"department"`
}

var studentMessages = validation.Messages{
	"nationalId":    "National ID is required",
	"name.required": "Student name is required",
	"name.min":      "Student name must be at least 2 characters",
}

// ValidateStudent checks the form.
func ValidateStudent(v *validation.Validator, in StudentInput) (backend.NewStudent, error) {
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	if err := v.Check(in, studentMessages); err != nil {
		return backend.NewStudent{}, err
	}
	return backend.NewStudent{NationalID: in.NationalID, Name: in.Name, Department: in.Department}, nil
}

// AssistantInput is the add-assistant form.
type AssistantInput struct {
	Name        string `json:"name" validate:"required"`
	Password    string `json:"password" validate:"required,min=3"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

var assistantMessages = validation.Messages{
	"name":              "Assistant name is required",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 3 characters long",
	"phoneNumber":       "Phone number is required",
}

// ValidateAssistant checks the form.
func ValidateAssistant(v *validation.Validator, in AssistantInput) (backend.NewAssistant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := v.Check(in, assistantMessages); err != nil {
		return backend.NewAssistant{}, err
	}
	return backend.NewAssistant{Name: in.Name, Password: in.Password, PhoneNumber: in.PhoneNumber}, nil
}

// Row is a roster entry with search highlighting.
type Row struct {
	backend.Student
	NameSegments []attendance.Segment `json:"nameSegments"`
}

// FilterStudents keeps students whose name contains term, ignoring case.
func FilterStudents(students []backend.Student, term string) []Row {
	out := make([]Row, 0, len(students))
	for _, s := range students {
		if !attendance.MatchesName(s.Name, term) {
			continue
		}
		out = append(out, Row{Student: s, NameSegments: attendance.Highlight(s.Name, term)})
	}
	return out
}

// AllowedExtensions are the roster file types the backend parses.
var AllowedExtensions = []string{".csv", ".xlsx", ".xls"}

// ValidateUpload checks a roster file before it is accepted for import.
func ValidateUpload(filename string, size, maxBytes int64) error {
	errs := validation.Errors{}
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	switch {
	case strings.TrimSpace(filename) == "":
		errs["file"] = "Please select a file"
	case size <= 0:
		errs["file"] = "The selected file is empty"
	case !allowed:
		errs["file"] = "File must be .csv, .xlsx or .xls"
	case maxBytes > 0 && size > maxBytes:
		errs["file"] = "File is too large"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
