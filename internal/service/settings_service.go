package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	"github.com/noah-isme/enrollment-kpi/internal/repository"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

var monthDayPattern = regexp.MustCompile(`^(\d{2})-(\d{2})$`)

type settingsRepository interface {
	GetSettings(ctx context.Context) (*models.AppSettings, error)
	SaveSettings(ctx context.Context, settings *models.AppSettings) error
	GetSources(ctx context.Context) (*models.SourceLayout, error)
	SaveSources(ctx context.Context, layout *models.SourceLayout) error
}

// SourceLayoutLoader reads the file-based layout used when the store has none.
type SourceLayoutLoader func() (models.SourceLayout, bool, error)

// SettingsService reads and updates operator settings and the source layout.
type SettingsService struct {
	repo       settingsRepository
	fileLayout SourceLayoutLoader
	validator  *validator.Validate
	logger     *zap.Logger
}

// SettingsServiceParams groups constructor dependencies.
type SettingsServiceParams struct {
	Repo       settingsRepository
	FileLayout SourceLayoutLoader
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewSettingsService constructs the service and registers the schoolyear and
// monthday validation tags.
func NewSettingsService(p SettingsServiceParams) *SettingsService {
	validate := p.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileLayout := p.FileLayout
	if fileLayout == nil {
		fileLayout = func() (models.SourceLayout, bool, error) {
			return models.DefaultSourceLayout(), false, nil
		}
	}
	_ = validate.RegisterValidation("schoolyear", func(fl validator.FieldLevel) bool {
		return reconcile.IsCanonicalSchoolYear(fl.Field().String())
	})
	_ = validate.RegisterValidation("monthday", func(fl validator.FieldLevel) bool {
		return validMonthDay(fl.Field().String())
	})
	return &SettingsService{repo: p.Repo, fileLayout: fileLayout, validator: validate, logger: logger}
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context) (models.AppSettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.DefaultAppSettings(), nil
		}
		return models.AppSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return *settings, nil
}

// Update validates a partial update and merges it over the current settings.
func (s *SettingsService) Update(ctx context.Context, patch models.AppSettingsPatch) (models.AppSettings, error) {
	if err := s.validator.Struct(patch); err != nil {
		return models.AppSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}
	current, err := s.Get(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	next := current.Merge(patch)
	if err := s.repo.SaveSettings(ctx, &next); err != nil {
		return models.AppSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	s.logger.Info("settings updated",
		zap.String("current_school_year", next.CurrentSchoolYear),
		zap.Strings("active_school_years", next.ActiveSchoolYears),
	)
	return next, nil
}

// Sources resolves the base layout: stored document, then file, then built-in.
func (s *SettingsService) Sources(ctx context.Context) (models.SourceLayout, error) {
	stored, err := s.repo.GetSources(ctx)
	switch {
	case err == nil && len(stored.Bases) > 0:
		return *stored, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return models.SourceLayout{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load source layout")
	}
	layout, found, err := s.fileLayout()
	if err != nil {
		return models.SourceLayout{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read source layout file")
	}
	if !found {
		s.logger.Debug("using built-in source layout")
	}
	return layout, nil
}

// SaveSources validates and stores a base layout.
func (s *SettingsService) SaveSources(ctx context.Context, layout models.SourceLayout) (models.SourceLayout, error) {
	if err := s.validator.Struct(layout); err != nil {
		return models.SourceLayout{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid source layout")
	}
	if err := s.repo.SaveSources(ctx, &layout); err != nil {
		return models.SourceLayout{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save source layout")
	}
	s.logger.Info("source layout saved", zap.Int("bases", len(layout.Bases)))
	return layout, nil
}

// Seed writes default settings and the file layout into the store. Existing
// documents are kept unless overwrite is set.
func (s *SettingsService) Seed(ctx context.Context, overwrite bool) error {
	if _, err := s.repo.GetSettings(ctx); overwrite || errors.Is(err, repository.ErrNotFound) {
		defaults := models.DefaultAppSettings()
		if err := s.repo.SaveSettings(ctx, &defaults); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if _, err := s.repo.GetSources(ctx); overwrite || errors.Is(err, repository.ErrNotFound) {
		layout, _, err := s.fileLayout()
		if err != nil {
			return fmt.Errorf("read source layout file: %w", err)
		}
		if _, err := s.SaveSources(ctx, layout); err != nil {
			return fmt.Errorf("seed sources: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}
	return nil
}

// CountDayDate returns midnight of the count day of a school year: the
// configured MM-DD in the year's starting calendar year.
func CountDayDate(settings models.AppSettings, schoolYear string, loc *time.Location) (time.Time, error) {
	start, err := reconcile.StartCalendarYear(schoolYear)
	if err != nil {
		return time.Time{}, err
	}
	if !validMonthDay(settings.CountDayDate) {
		return time.Time{}, fmt.Errorf("invalid count day %q", settings.CountDayDate)
	}
	m := monthDayPattern.FindStringSubmatch(strings.TrimSpace(settings.CountDayDate))
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(start, time.Month(month), day, 0, 0, 0, 0, loc), nil
}

func validMonthDay(s string) bool {
	m := monthDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}
