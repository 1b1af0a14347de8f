package formula

import (
	"context"
	"testing"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapping() domain.ColumnMapping {
	return domain.ColumnMapping{
		Sessions: domain.SessionColumns{
			Primary:           "campaign",
			Secondary:         "ad",
			Date:              "day",
			Visitors:          "visitors",
			CartAdds:          "cartAdds",
			CheckoutStarts:    "checkoutStarts",
			CheckoutCompletes: "checkoutCompletes",
			PageViews:         "pageviews",
			Duration:          "duration",
		},
		Meta:   domain.PlatformColumns{Primary: "Campaign name", Secondary: "Ad set name", Date: "Day"},
		Google: domain.PlatformColumns{Primary: "Campaign", Date: "Day"},
	}
}

func newTestEvaluator(t *testing.T, mode FilterMode) *Evaluator {
	t.Helper()
	return NewEvaluator(newTestGrammar(t), Settings{Columns: testMapping(), FilterMode: mode})
}

func def(name string, source domain.InputSource, dataType domain.DataType, formula string) domain.FieldDefinition {
	return domain.FieldDefinition{
		FieldName:    name,
		OutputTarget: domain.OutputGroupLevel,
		InputSource:  source,
		DataType:     dataType,
		Formula:      formula,
	}
}

func TestEvaluator_CalculatedRate(t *testing.T) {
	// Given a group with 100 visitors and 20 cart adds
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	pivot := &domain.PivotRow{Primary: "camp1", Secondary: "ad1", Visitors: 100, CartAdds: 20}
	siblings := map[string]any{}

	// When the direct fields and a percentage are evaluated in order
	defs := []domain.FieldDefinition{
		def("Users", domain.SourceSessions, domain.DataTypeNumber, `As is from input file column name "visitors"`),
		def("ATC", domain.SourceSessions, domain.DataTypeNumber, `As is from input file column name "cartAdds"`),
		def("ATC Rate", domain.SourceCalculate, domain.DataTypeNumber, "Percentage of ({ATC} / {Users})"),
	}
	for _, d := range defs {
		_, err := e.Evaluate(ctx, d, pivot, domain.Datasets{}, siblings)
		require.NoError(t, err)
	}

	// Then the rate reads the sibling values
	assert.Equal(t, 100.0, siblings["Users"])
	assert.Equal(t, 20.0, siblings["ATC"])
	assert.Equal(t, 20.0, siblings["ATC Rate"])
}

func TestEvaluator_DivisionByZero(t *testing.T) {
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	siblings := map[string]any{"Orders": 0.0, "Revenue": 250.0}

	got, err := e.Evaluate(ctx, def("AOV", domain.SourceCalculate, domain.DataTypeNumber, "{Revenue} / {Orders}"),
		&domain.PivotRow{}, domain.Datasets{}, siblings)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = e.Evaluate(ctx, def("Share", domain.SourceCalculate, domain.DataTypeNumber, "Percentage of ({Revenue} / {Orders})"),
		&domain.PivotRow{}, domain.Datasets{}, siblings)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestEvaluator_SiblingLookupIgnoresCase(t *testing.T) {
	e := newTestEvaluator(t, FilterPerRecord)
	siblings := map[string]any{"total spend": "1,000"}

	got, err := e.Evaluate(context.Background(), def("Half", domain.SourceCalculate, domain.DataTypeNumber, "{Total Spend} / 2"),
		&domain.PivotRow{}, domain.Datasets{}, siblings)

	require.NoError(t, err)
	assert.Equal(t, 500.0, got)
}

func TestEvaluator_FilteredAggregate(t *testing.T) {
	formula := `SUM: All numeric field of "visitors" limited to session duration above one minute`
	pivot := &domain.PivotRow{Records: []domain.Record{
		{"visitors": 10, "duration": 90},
		{"visitors": 5, "duration": 30},
	}}

	t.Run("per record", func(t *testing.T) {
		e := newTestEvaluator(t, FilterPerRecord)
		got, err := e.Evaluate(context.Background(), def("Engaged", domain.SourceSessions, domain.DataTypeNumber, formula),
			pivot, domain.Datasets{}, map[string]any{})

		require.NoError(t, err)
		assert.Equal(t, 10.0, got)
	})

	t.Run("retention ratio", func(t *testing.T) {
		e := newTestEvaluator(t, FilterRetentionRatio)
		got, err := e.Evaluate(context.Background(), def("Engaged", domain.SourceSessions, domain.DataTypeNumber, formula),
			pivot, domain.Datasets{}, map[string]any{})

		require.NoError(t, err)
		assert.InDelta(t, 15*QualityDurationRetention, got, 1e-9)
	})

	t.Run("falls back to ratio when duration is missing", func(t *testing.T) {
		e := newTestEvaluator(t, FilterPerRecord)
		noDuration := &domain.PivotRow{Records: []domain.Record{{"visitors": 10}, {"visitors": 10}}}
		got, err := e.Evaluate(context.Background(), def("Engaged", domain.SourceSessions, domain.DataTypeNumber, formula),
			noDuration, domain.Datasets{}, map[string]any{})

		require.NoError(t, err)
		assert.InDelta(t, 20*QualityDurationRetention, got, 1e-9)
	})

	t.Run("blank durations count as missing", func(t *testing.T) {
		e := newTestEvaluator(t, FilterPerRecord)
		blank := &domain.PivotRow{Records: []domain.Record{
			{"visitors": "10", "duration": "90"},
			{"visitors": "10", "duration": " "},
		}}
		got, err := e.Evaluate(context.Background(), def("Engaged", domain.SourceSessions, domain.DataTypeNumber, formula),
			blank, domain.Datasets{}, map[string]any{})

		require.NoError(t, err)
		assert.InDelta(t, 20*QualityDurationRetention, got, 1e-9)
	})
}

func TestEvaluator_PlatformRecords(t *testing.T) {
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	data := domain.Datasets{
		Meta: []domain.Record{
			{"Campaign name": "camp1", "Ad set name": "ad1", "Amount spent": "$10.50", "Budget": 300},
			{"Campaign name": "CAMP1 ", "Ad set name": "ad1", "Amount spent": 4.5},
			{"Campaign name": "camp1", "Ad set name": "ad2", "Amount spent": 100},
		},
		Google: []domain.Record{
			{"Campaign": "camp1", "Cost": 7},
			{"Campaign": "camp2", "Cost": 70},
		},
	}
	pivot := &domain.PivotRow{Primary: "camp1", Secondary: "ad1"}

	t.Run("meta matches both identities", func(t *testing.T) {
		got, err := e.Evaluate(ctx, def("Spend", domain.SourceMeta, domain.DataTypeNumber, `SUM: All numeric field of "Amount spent"`),
			pivot, data, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, 15.0, got)
	})

	t.Run("google matches primary only", func(t *testing.T) {
		got, err := e.Evaluate(ctx, def("Cost", domain.SourceGoogle, domain.DataTypeNumber, `SUM: All numeric field of "Cost"`),
			pivot, data, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, 7.0, got)
	})

	t.Run("lookup returns the first matching value", func(t *testing.T) {
		got, err := e.Evaluate(ctx, def("Budget", domain.SourceMeta, domain.DataTypeNumber,
			`Look up "Budget" from pivot_temp.csv and match it to campaign`), pivot, data, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, 300.0, got)
	})

	t.Run("lookup without a match", func(t *testing.T) {
		other := &domain.PivotRow{Primary: "nope", Secondary: "ad1"}
		got, err := e.Evaluate(ctx, def("Budget", domain.SourceMeta, domain.DataTypeNumber,
			`Look up "Budget" from pivot_temp.csv and match it to campaign`), other, data, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})
}

func TestEvaluator_LookupSkipsBlankCells(t *testing.T) {
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	data := domain.Datasets{Meta: []domain.Record{
		{"Campaign name": "camp1", "Ad set name": "ad1", "Budget": "", "Objective": "  "},
		{"Campaign name": "camp1", "Ad set name": "ad1", "Budget": "250", "Objective": "Sales"},
	}}
	pivot := &domain.PivotRow{Primary: "camp1", Secondary: "ad1"}

	budget, err := e.Evaluate(ctx, def("Budget", domain.SourceMeta, domain.DataTypeNumber,
		`Look up "Budget" from pivot_temp.csv and match it to the ad set`), pivot, data, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 250.0, budget)

	objective, err := e.Evaluate(ctx, def("Objective", domain.SourceMeta, domain.DataTypeText,
		`Look up "Objective" from pivot_temp.csv and match it to the ad set`), pivot, data, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Sales", objective)
}

func TestEvaluator_AggregateLevel(t *testing.T) {
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	data := domain.Datasets{Sessions: []domain.Record{
		{"visitors": 30, "duration": 60},
		{"visitors": 10, "duration": 100},
		{"visitors": 0, "duration": 999},
	}}

	users, err := e.Evaluate(ctx, def("Users", domain.SourceSessions, domain.DataTypeNumber, `As is from input file column name "visitors"`),
		nil, data, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 40.0, users)

	siblings := map[string]any{}
	got, err := e.Evaluate(ctx, def("Avg Duration", domain.SourceCalculate, domain.DataTypeNumber, "{duration} * 1"),
		nil, data, siblings)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got)

	key, err := e.Evaluate(ctx, def("Campaign", domain.SourceSessions, domain.DataTypeText, "PRIMARY GROUP"),
		nil, data, siblings)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestEvaluator_EmptyResults(t *testing.T) {
	ctx := context.Background()
	e := newTestEvaluator(t, FilterPerRecord)
	siblings := map[string]any{}

	got, err := e.Evaluate(ctx, def("Broken", domain.SourceSessions, domain.DataTypeNumber, "???invalid???"),
		&domain.PivotRow{}, domain.Datasets{}, siblings)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, siblings, "Broken")

	got, err = e.Evaluate(ctx, def("Notes", domain.SourceManual, domain.DataTypeText, "filled in by hand"),
		&domain.PivotRow{}, domain.Datasets{}, siblings)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluator_GroupKeys(t *testing.T) {
	e := newTestEvaluator(t, FilterPerRecord)
	pivot := &domain.PivotRow{Primary: "camp1", Secondary: domain.UnknownGroup}

	primary, err := e.Evaluate(context.Background(), def("Campaign", domain.SourceSessions, domain.DataTypeText, "PRIMARY GROUP"),
		pivot, domain.Datasets{}, map[string]any{})
	require.NoError(t, err)
	secondary, err := e.Evaluate(context.Background(), def("Ad", domain.SourceSessions, domain.DataTypeText, "SECONDARY GROUP"),
		pivot, domain.Datasets{}, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "camp1", primary)
	assert.Equal(t, domain.UnknownGroup, secondary)
}
