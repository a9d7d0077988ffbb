package livestats_test

import (
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func productsWithStatuses(statuses ...models.ProductStatus) []models.Product {
	out := make([]models.Product, 0, len(statuses))
	for i, st := range statuses {
		out = append(out, testutil.NewProduct("p", st, refTime.Add(-time.Duration(i)*time.Minute)))
	}
	return out
}

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCountByKey_Empty(t *testing.T) {
	got := livestats.CountByKey([]models.Product{}, func(p models.Product) models.ProductStatus { return p.Status })
	require.NotNil(t, got)
	assert.Empty(t, got)

	got = livestats.CountByKey[models.Product, models.ProductStatus](nil, func(p models.Product) models.ProductStatus { return p.Status })
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCountByKey_ProductStatusScenario(t *testing.T) {
	var statuses []models.ProductStatus
	statuses = append(statuses, repeat(models.ProductIdeation, 3)...)
	statuses = append(statuses, repeat(models.ProductDesign, 4)...)
	statuses = append(statuses, repeat(models.ProductDevelopment, 3)...)

	got := livestats.CountByKey(productsWithStatuses(statuses...), func(p models.Product) models.ProductStatus { return p.Status })

	want := []livestats.Bucket{
		{Key: "ideation", Label: "Ideation", Count: 3},
		{Key: "design", Label: "Design", Count: 4},
		{Key: "development", Label: "Development", Count: 3},
	}
	assert.Equal(t, want, got)
}

func TestCountByKey_FirstSeenOrderNotAlphabetical(t *testing.T) {
	tasks := []models.Task{
		{Priority: models.PriorityUrgent},
		{Priority: models.PriorityLow},
		{Priority: models.PriorityUrgent},
		{Priority: models.PriorityHigh},
		{Priority: models.PriorityLow},
	}
	got := livestats.CountByKey(tasks, func(t models.Task) models.TaskPriority { return t.Priority })

	require.Len(t, got, 3)
	assert.Equal(t, "urgent", got[0].Key)
	assert.Equal(t, "low", got[1].Key)
	assert.Equal(t, "high", got[2].Key)

	total := 0
	for _, b := range got {
		total += b.Count
	}
	assert.Equal(t, len(tasks), total)
}

func TestCountByKey_LabelsAreTitleCased(t *testing.T) {
	tasks := []models.Task{{Status: models.TaskInProgress}, {Status: models.TaskTodo}}
	got := livestats.CountByKey(tasks, func(t models.Task) models.TaskStatus { return t.Status })

	require.Len(t, got, 2)
	assert.Equal(t, "In Progress", got[0].Label)
	assert.Equal(t, "Todo", got[1].Label)
}

func TestIsActiveWithin_Boundary(t *testing.T) {
	tests := []struct {
		name      string
		lastLogin time.Time
		want      bool
	}{
		{"just now", refTime, true},
		{"one ms inside window", refTime.Add(-livestats.ActiveWindow + time.Millisecond), true},
		{"exactly at window", refTime.Add(-livestats.ActiveWindow), false},
		{"one ms past window", refTime.Add(-livestats.ActiveWindow - time.Millisecond), false},
		{"never signed in", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := models.User{LastLogin: tt.lastLogin}
			if got := livestats.IsActiveWithin(u, livestats.ActiveWindow, refTime); got != tt.want {
				t.Errorf("IsActiveWithin: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActiveWindow_IsSevenDays(t *testing.T) {
	assert.Equal(t, int64(7*24*60*60*1000), livestats.ActiveWindow.Milliseconds())
}

func TestActiveProjects_CountsDesignAndDevelopment(t *testing.T) {
	products := productsWithStatuses(
		models.ProductIdeation,
		models.ProductDesign,
		models.ProductDevelopment,
		models.ProductDevelopment,
		models.ProductLaunch,
		models.ProductRetired,
	)
	assert.Equal(t, 3, livestats.ActiveProjects(products))
	assert.Equal(t, 0, livestats.ActiveProjects(nil))
}

func TestRecentProducts_NewestFirstAndBounded(t *testing.T) {
	old := testutil.NewProduct("old", models.ProductIdeation, refTime.Add(-time.Hour))
	mid := testutil.NewProduct("mid", models.ProductIdeation, refTime.Add(-time.Minute))
	newest := testutil.NewProduct("new", models.ProductIdeation, refTime)

	got := livestats.RecentProducts([]models.Product{old, newest, mid}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)

	empty := livestats.RecentProducts(nil, 3)
	require.NotNil(t, empty)
	assert.Empty(t, empty)
}
