package template

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *DefaultManager {
	t.Helper()
	m, err := NewManager(newTestValidator(t, false))
	require.NoError(t, err)
	return m
}

func TestManager_Default(t *testing.T) {
	m := newTestManager(t)

	cfg := m.Active()

	require.NotNil(t, cfg)
	assert.False(t, cfg.IsActive)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.NotEmpty(t, cfg.ForTarget(domain.OutputGroupLevel))
	assert.NotEmpty(t, cfg.ForTarget(domain.OutputAggregateLevel))
}

func TestManager_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("valid draft becomes active", func(t *testing.T) {
		// Given a manager on the default template
		m := newTestManager(t)
		draft := NewDraft(append(essentials(), calc("Dup", "{Users} * 2"), calc("dup", "{Users} * 3")))

		// When the draft is applied
		err := m.Apply(ctx, draft)

		// Then it is swapped in with a bumped version and its warnings kept
		require.NoError(t, err)
		assert.Equal(t, StateActive, draft.State)
		assert.True(t, draft.Result.HasCode(domain.CodeDuplicateField))
		active := m.Active()
		assert.Same(t, draft.Config, active)
		assert.True(t, active.IsActive)
		assert.Equal(t, "1.1.0", active.Version)
		assert.Len(t, active.Definitions, 6)

		require.NoError(t, m.Apply(ctx, NewDraft(essentials())))
		assert.Equal(t, "1.2.0", m.Active().Version)
	})

	t.Run("invalid draft leaves the active config untouched", func(t *testing.T) {
		m := newTestManager(t)
		before := m.Active()
		draft := NewDraft(append(essentials(), calc("X", "Y + 1"), calc("Y", "X + 1")))

		err := m.Apply(ctx, draft)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTemplate))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Result.HasCode(domain.CodeCircularDependency))
		assert.Equal(t, StateInvalid, draft.State)
		assert.Same(t, before, m.Active())
	})

	t.Run("rejected draft can be edited and resubmitted", func(t *testing.T) {
		m := newTestManager(t)
		draft := NewDraft(nil)
		require.Error(t, m.Apply(ctx, draft))
		require.Error(t, m.Apply(ctx, draft), "an invalid draft must be edited first")

		draft.Edit(essentials())

		require.NoError(t, m.Apply(ctx, draft))
		assert.Equal(t, StateActive, draft.State)
	})
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, m.Apply(ctx, NewDraft(essentials())))

	require.NoError(t, m.Reset(ctx))

	assert.False(t, m.Active().IsActive)
	assert.Equal(t, "1.0.0", m.Active().Version)
}

func TestManager_ConcurrentApply(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Apply(ctx, NewDraft(essentials())))
			assert.NotNil(t, m.Active())
		}()
	}
	wg.Wait()

	assert.Equal(t, "1.10.0", m.Active().Version)
}
