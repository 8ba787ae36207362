package models

import "time"

// StudentRecord is the canonical ledger row for one student in one school year.
type StudentRecord struct {
	ID                  string    `db:"id" json:"id" bson:"_id"`
	StudentKey          string    `db:"student_key" json:"studentKey" bson:"studentKey"`
	FirstName           string    `db:"first_name" json:"firstName" bson:"firstName"`
	LastName            string    `db:"last_name" json:"lastName" bson:"lastName"`
	DOB                 string    `db:"dob" json:"dob" bson:"dob"`
	SchoolYear          string    `db:"school_year" json:"schoolYear" bson:"schoolYear"`
	Campus              string    `db:"campus" json:"campus" bson:"campus"`
	MCLeader            string    `db:"mc_leader" json:"mcLeader" bson:"mcLeader"`
	CampusKey           string    `db:"campus_key" json:"campusKey" bson:"campusKey"`
	EnrollmentStatus    string    `db:"enrollment_status" json:"enrollmentStatus" bson:"enrollmentStatus"`
	EnrolledDate        string    `db:"enrolled_date" json:"enrolledDate" bson:"enrolledDate"`
	IsReturningStudent  bool      `db:"is_returning_student" json:"isReturningStudent" bson:"isReturningStudent"`
	IsReturningCampus   bool      `db:"is_returning_campus" json:"isReturningCampus" bson:"isReturningCampus"`
	AttendedAtLeastOnce bool      `db:"attended_at_least_once" json:"attendedAtLeastOnce" bson:"attendedAtLeastOnce"`
	WithdrawalDate      *string   `db:"withdrawal_date" json:"withdrawalDate" bson:"withdrawalDate"`
	IsVerifiedTransfer  bool      `db:"is_verified_transfer" json:"isVerifiedTransfer" bson:"isVerifiedTransfer"`
	IsGraduate          bool      `db:"is_graduate" json:"isGraduate" bson:"isGraduate"`
	SyncedAt            time.Time `db:"synced_at" json:"syncedAt" bson:"syncedAt"`
}

// IsActive reports whether the record's status counts toward enrollment.
func (r StudentRecord) IsActive() bool {
	return IsActiveStatus(r.EnrollmentStatus)
}

// SyncResult summarises a reconciliation run.
type SyncResult struct {
	RunID        string   `json:"runId"`
	Processed    int      `json:"processed"`
	Skipped      int      `json:"skipped"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings,omitempty"`
	FallbackUsed bool     `json:"fallbackUsed"`
	Years        []string `json:"years"`
}
