package models

import "time"

// Config document keys.
const (
	ConfigKeySettings = "settings"
	ConfigKeySources  = "sources"
)

// AppSettings holds operator-editable reporting settings.
type AppSettings struct {
	PerStudentFunding float64   `json:"perStudentFunding" bson:"perStudentFunding" yaml:"perStudentFunding"`
	CountDayDate      string    `json:"countDayDate" bson:"countDayDate" yaml:"countDayDate"`
	CurrentSchoolYear string    `json:"currentSchoolYear" bson:"currentSchoolYear" yaml:"currentSchoolYear"`
	ActiveSchoolYears []string  `json:"activeSchoolYears" bson:"activeSchoolYears" yaml:"activeSchoolYears"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt" yaml:"-"`
}

// DefaultAppSettings mirrors the values used before any settings document exists.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		PerStudentFunding: 11380,
		CountDayDate:      "10-01",
		CurrentSchoolYear: "2025-26",
		ActiveSchoolYears: []string{"2023-24", "2024-25", "2025-26"},
	}
}

// Merge overlays non-zero fields of patch onto s.
func (s AppSettings) Merge(patch AppSettingsPatch) AppSettings {
	out := s
	if patch.PerStudentFunding != nil {
		out.PerStudentFunding = *patch.PerStudentFunding
	}
	if patch.CountDayDate != nil {
		out.CountDayDate = *patch.CountDayDate
	}
	if patch.CurrentSchoolYear != nil {
		out.CurrentSchoolYear = *patch.CurrentSchoolYear
	}
	if patch.ActiveSchoolYears != nil {
		out.ActiveSchoolYears = append([]string(nil), patch.ActiveSchoolYears...)
	}
	return out
}

// AppSettingsPatch is a partial settings update; nil fields are left untouched.
type AppSettingsPatch struct {
	PerStudentFunding *float64 `json:"perStudentFunding" validate:"omitempty,gte=0"`
	CountDayDate      *string  `json:"countDayDate" validate:"omitempty,monthday"`
	CurrentSchoolYear *string  `json:"currentSchoolYear" validate:"omitempty,schoolyear"`
	ActiveSchoolYears []string `json:"activeSchoolYears" validate:"omitempty,dive,schoolyear"`
}
