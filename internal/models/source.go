package models

// Attendance modes of a source base.
const (
	AttendanceModePresence = "presence"
	AttendanceModeAbsence  = "absence"
)

// StudentFieldMap names the primary student table's columns.
type StudentFieldMap struct {
	FirstName      string `yaml:"firstName" json:"firstName" bson:"firstName" validate:"required"`
	LastName       string `yaml:"lastName" json:"lastName" bson:"lastName" validate:"required"`
	DOB            string `yaml:"dob" json:"dob" bson:"dob" validate:"required"`
	SchoolYear     string `yaml:"schoolYear" json:"schoolYear" bson:"schoolYear"`
	Status         string `yaml:"enrollmentStatus" json:"enrollmentStatus" bson:"enrollmentStatus"`
	Campus         string `yaml:"campusName" json:"campusName" bson:"campusName"`
	MCLeader       string `yaml:"mcLeader" json:"mcLeader" bson:"mcLeader"`
	EnrollmentDate string `yaml:"enrollmentDate" json:"enrollmentDate" bson:"enrollmentDate"`
	Created        string `yaml:"created" json:"created" bson:"created"`
	LastModified   string `yaml:"lastModified" json:"lastModified" bson:"lastModified"`
}

// TruthFieldMap names the secondary enrollment table's columns.
type TruthFieldMap struct {
	StudentLink      string `yaml:"studentLink" json:"studentLink" bson:"studentLink" validate:"required"`
	DateEnrolled     string `yaml:"dateEnrolled" json:"dateEnrolled" bson:"dateEnrolled"`
	EnrollmentStatus string `yaml:"enrollmentStatus" json:"enrollmentStatus" bson:"enrollmentStatus"`
	SchoolYear       string `yaml:"schoolYear" json:"schoolYear" bson:"schoolYear" validate:"required"`
	Created          string `yaml:"created" json:"created" bson:"created"`
	MCLeader         string `yaml:"mcLeader" json:"mcLeader" bson:"mcLeader"`
	Campus           string `yaml:"campusFromTruth" json:"campusFromTruth" bson:"campusFromTruth"`
	S1Present        string `yaml:"s1TotalPresentDays" json:"s1TotalPresentDays" bson:"s1TotalPresentDays"`
	S2Present        string `yaml:"s2TotalPresentDays" json:"s2TotalPresentDays" bson:"s2TotalPresentDays"`
	S1Possible       string `yaml:"s1PossiblePresentDays" json:"s1PossiblePresentDays" bson:"s1PossiblePresentDays"`
	S2Possible       string `yaml:"s2PossiblePresentDays" json:"s2PossiblePresentDays" bson:"s2PossiblePresentDays"`
}

// StudentTable locates the primary table of a base.
type StudentTable struct {
	Table  string          `yaml:"table" json:"table" bson:"table" validate:"required"`
	Fields StudentFieldMap `yaml:"fields" json:"fields" bson:"fields"`
}

// TruthTable locates the secondary enrollment table of a base.
type TruthTable struct {
	Table  string        `yaml:"table" json:"table" bson:"table" validate:"required"`
	Fields TruthFieldMap `yaml:"fields" json:"fields" bson:"fields"`
}

// SourceBase describes one externally-owned base and the years it serves.
type SourceBase struct {
	BaseID         string       `yaml:"baseId" json:"baseId" bson:"baseId" validate:"required"`
	Label          string       `yaml:"label" json:"label" bson:"label"`
	SchoolYears    []string     `yaml:"schoolYears" json:"schoolYears" bson:"schoolYears" validate:"required,min=1,dive,schoolyear"`
	AttendanceMode string       `yaml:"attendanceMode" json:"attendanceMode" bson:"attendanceMode" validate:"omitempty,oneof=presence absence"`
	Students       StudentTable `yaml:"students" json:"students" bson:"students"`
	Truth          *TruthTable  `yaml:"truth,omitempty" json:"truth,omitempty" bson:"truth,omitempty"`
}

// SourceLayout is the full set of bases the sync reads.
type SourceLayout struct {
	Bases []SourceBase `yaml:"bases" json:"bases" bson:"bases" validate:"required,min=1,dive"`
}

// DefaultSourceLayout returns the layout of the production deployment.
func DefaultSourceLayout() SourceLayout {
	students := func(yearField string) StudentTable {
		return StudentTable{
			Table: "Students",
			Fields: StudentFieldMap{
				FirstName:      "Student's Legal First Name (as stated on their birth certificate)",
				LastName:       "Student's Legal Last Name",
				DOB:            "Student's Birthdate",
				SchoolYear:     yearField,
				Status:         "Status of Enrollment (from Student Truth)",
				Campus:         "Campus (from Truth) (from Student Truth)",
				EnrollmentDate: "Enrollment Date",
				Created:        "Created",
				LastModified:   "Last Modified",
			},
		}
	}
	truth := func(leaderField string) *TruthTable {
		return &TruthTable{
			Table: "Student Truth",
			Fields: TruthFieldMap{
				StudentLink:      "Student",
				DateEnrolled:     "Date Enrolled",
				EnrollmentStatus: "Status of Enrollment",
				SchoolYear:       "School Year",
				Created:          "Created",
				MCLeader:         leaderField,
				Campus:           "Campus (from Truth)",
				S1Present:        "S1 Total Present Days",
				S2Present:        "S2 Total Present Days",
				S1Possible:       "S1 Number of Possible Present Days",
				S2Possible:       "S2 Number of Possible Present Days",
			},
		}
	}

	return SourceLayout{Bases: []SourceBase{
		{
			BaseID:         "appnol2rxwLMp4WfV",
			Label:          "Students 25-26 & 26-27",
			SchoolYears:    []string{"2025-26", "2026-27"},
			AttendanceMode: AttendanceModeAbsence,
			Students:       students("School Year Text"),
			Truth:          truth("Staff (From Truth)"),
		},
		{
			BaseID:         "appQpRPypqTqk6emb",
			Label:          "Students 23-24 & 24-25",
			SchoolYears:    []string{"2023-24", "2024-25"},
			AttendanceMode: AttendanceModePresence,
			Students:       students("School Year"),
			Truth:          truth("Staff (from Truth)"),
		},
	}}
}
