package reconcile

import (
	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/source"
)

var (
	testStudentFields = models.StudentFieldMap{
		FirstName:      "First",
		LastName:       "Last",
		DOB:            "DOB",
		SchoolYear:     "School Year",
		Status:         "Status",
		Campus:         "Campus",
		MCLeader:       "Leader",
		EnrollmentDate: "Enrollment Date",
	}
	testTruthFields = models.TruthFieldMap{
		StudentLink:      "Student",
		DateEnrolled:     "Date Enrolled",
		EnrollmentStatus: "Status",
		SchoolYear:       "School Year",
		Created:          "Created",
		MCLeader:         "Staff",
		Campus:           "Campus",
		S1Present:        "S1 Present",
		S2Present:        "S2 Present",
		S1Possible:       "S1 Possible",
		S2Possible:       "S2 Possible",
	}
)

func studentRow(id string, fields map[string]interface{}) source.Record {
	return source.Record{ID: id, CreatedTime: "2024-07-01T10:00:00.000Z", Fields: fields}
}
