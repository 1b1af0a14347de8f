package template

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

var ErrInvalidTemplate = errors.New("template failed validation")

// ValidationError carries the result of a rejected activation.
type ValidationError struct {
	Result domain.ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d error(s)", ErrInvalidTemplate, len(e.Result.Errors))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTemplate
}

type State string

const (
	StateDraft      State = "draft"
	StateValidating State = "validating"
	StateValid      State = "valid"
	StateInvalid    State = "invalid"
	StateActive     State = "active"
)

// Draft is a template on its way to activation.
type Draft struct {
	Rows   []domain.TemplateRow
	State  State
	Result domain.ValidationResult
	Config *domain.LogicConfiguration
}

func NewDraft(rows []domain.TemplateRow) *Draft {
	return &Draft{Rows: rows, State: StateDraft}
}

// Edit replaces the rows of a rejected draft so it can be submitted again.
func (d *Draft) Edit(rows []domain.TemplateRow) {
	d.Rows = rows
	d.State = StateDraft
	d.Result = domain.ValidationResult{}
	d.Config = nil
}

type Manager interface {
	// Active returns the configuration runs should use. Callers must not modify it.
	Active() *domain.LogicConfiguration
	Validate(rows []domain.TemplateRow) domain.ValidationResult
	Apply(ctx context.Context, draft *Draft) error
	Reset(ctx context.Context) error
}

type DefaultManager struct {
	validator *Validator
	now       func() time.Time

	mu     sync.Mutex // serialises Apply and Reset
	active atomic.Pointer[domain.LogicConfiguration]
}

// NewManager starts with the built-in default template active.
func NewManager(validator *Validator) (*DefaultManager, error) {
	m := &DefaultManager{validator: validator, now: time.Now}
	cfg, err := m.defaultConfiguration()
	if err != nil {
		return nil, err
	}
	m.active.Store(cfg)
	return m, nil
}

func (m *DefaultManager) Active() *domain.LogicConfiguration {
	return m.active.Load()
}

func (m *DefaultManager) Validate(rows []domain.TemplateRow) domain.ValidationResult {
	return m.validator.Validate(rows)
}

// Apply validates the draft and, when it has no errors, swaps it in as the
// active configuration with the next minor version.
func (m *DefaultManager) Apply(ctx context.Context, draft *Draft) error {
	logger := zerolog.Ctx(ctx)

	if draft.State != StateDraft {
		return fmt.Errorf("draft in state %s cannot be applied", draft.State)
	}
	draft.State = StateValidating
	draft.Result = m.validator.Validate(draft.Rows)
	if !draft.Result.IsValid {
		draft.State = StateInvalid
		logger.Info().
			Int("errors", len(draft.Result.Errors)).
			Int("warnings", len(draft.Result.Warnings)).
			Msg("template rejected")
		return &ValidationError{Result: draft.Result}
	}
	draft.State = StateValid

	m.mu.Lock()
	defer m.mu.Unlock()

	version, err := nextVersion(m.active.Load().Version)
	if err != nil {
		return err
	}
	cfg := &domain.LogicConfiguration{
		Definitions:  Definitions(draft.Rows),
		LastModified: m.now(),
		Version:      version,
		IsActive:     true,
	}
	m.active.Store(cfg)
	draft.Config = cfg
	draft.State = StateActive

	logger.Info().
		Str("version", cfg.Version).
		Int("fields", len(cfg.Definitions)).
		Int("warnings", len(draft.Result.Warnings)).
		Msg("template activated")
	return nil
}

// Reset restores the built-in default template.
func (m *DefaultManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.defaultConfiguration()
	if err != nil {
		return err
	}
	m.active.Store(cfg)
	zerolog.Ctx(ctx).Info().Str("version", cfg.Version).Msg("default template restored")
	return nil
}

func (m *DefaultManager) defaultConfiguration() (*domain.LogicConfiguration, error) {
	rows, version, err := DefaultRows()
	if err != nil {
		return nil, err
	}
	if result := m.validator.Validate(rows); !result.IsValid {
		return nil, fmt.Errorf("default template: %w", &ValidationError{Result: result})
	}
	if _, err := semver.StrictNewVersion(version); err != nil {
		return nil, fmt.Errorf("default template version %q: %w", version, err)
	}
	return &domain.LogicConfiguration{
		Definitions:  Definitions(rows),
		LastModified: m.now(),
		Version:      version,
		IsActive:     false,
	}, nil
}

func nextVersion(current string) (string, error) {
	v, err := semver.NewVersion(current)
	if err != nil {
		return "", fmt.Errorf("failed to parse configuration version %q: %w", current, err)
	}
	next := v.IncMinor()
	return next.String(), nil
}
