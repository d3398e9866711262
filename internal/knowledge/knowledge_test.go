package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryNoData(t *testing.T) {
	b := NewBase(t.TempDir())
	assert.Equal(t, NoDataSummary, b.Summary())
}

func TestSaveLoadSummary(t *testing.T) {
	b := NewBase(t.TempDir())

	ctx := Context{
		Filename: "housing.csv",
		Columns:  map[string]string{"median_house_value": "The price or monetary value."},
	}
	require.NoError(t, b.Save(ctx))

	loaded, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, ctx, loaded)

	summary := b.Summary()
	assert.Contains(t, summary, "housing.csv")
	assert.Contains(t, summary, "median_house_value")
}

func TestSummaryReadsFreshEveryCall(t *testing.T) {
	b := NewBase(t.TempDir())
	require.NoError(t, b.Save(Context{Filename: "old.csv", Columns: map[string]string{}}))
	assert.Contains(t, b.Summary(), "old.csv")

	// An update between calls must be visible immediately. No caching.
	require.NoError(t, b.Save(Context{Filename: "new.csv", Columns: map[string]string{}}))
	assert.Contains(t, b.Summary(), "new.csv")
	assert.NotContains(t, b.Summary(), "old.csv")
}

func TestBuildContextDescriptions(t *testing.T) {
	ctx := BuildContext("housing.csv", []ColumnStats{
		{
			Name: "median_house_value", Numeric: true,
			Min: 87500, Max: 500001, Mean: 309720.4, Distinct: 5,
			Samples: []string{"452600", "358500"},
		},
		{
			Name: "ocean_proximity", Numeric: false, Distinct: 3,
			Samples: []string{"NEAR BAY", "INLAND", "NEAR OCEAN"},
		},
		{
			Name: "total_bedrooms", Numeric: true,
			Min: 129, Max: 1106, Mean: 481.25, Distinct: 4, Nulls: 1,
			Samples: []string{"129", "1106", "190", "500"},
		},
	})

	assert.Equal(t, "housing.csv", ctx.Filename)

	price := ctx.Columns["median_house_value"]
	assert.Contains(t, price, "price or monetary value")
	assert.Contains(t, price, "Range: 87500.00 to 500001.00")
	assert.Contains(t, price, "Average: 309720.40")

	ocean := ctx.Columns["ocean_proximity"]
	assert.Contains(t, ocean, "NEAR BAY, INLAND, NEAR OCEAN")

	bedrooms := ctx.Columns["total_bedrooms"]
	assert.Contains(t, bedrooms, "Note: 1 missing values")
}

func TestInferMeaningByName(t *testing.T) {
	tests := []struct {
		col  string
		want string
	}{
		{"listing_price", "price or monetary value"},
		{"housing_median_age", "age or time period"},
		{"created_date", "timestamp or date"},
		{"user_id", "unique identifier"},
		{"latitude", "latitude coordinate"},
		{"longitude", "longitude coordinate"},
		{"room_count", "count or quantity"},
		{"vacancy_rate", "percentage or rate"},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			got := inferMeaning(ColumnStats{Name: tt.col})
			assert.Contains(t, got, tt.want)
		})
	}
}
