package repository

import (
	"testing"

	"attendance-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertReplacesExistingMonth(t *testing.T) {
	repo, err := NewGormMonthlySummaryRepository(newTestDB(t))
	require.NoError(t, err)

	first := &models.MonthlySummary{
		UserID:        "user-1",
		Year:          2026,
		Month:         3,
		ExpectedDays:  22,
		WorkedDays:    10,
		PresentDays:   9,
		WorkedMinutes: 4800,
	}
	require.NoError(t, repo.Upsert(first))

	second := &models.MonthlySummary{
		UserID:        "user-1",
		Year:          2026,
		Month:         3,
		ExpectedDays:  22,
		WorkedDays:    11,
		PresentDays:   10,
		WorkedMinutes: 5280,
	}
	require.NoError(t, repo.Upsert(second))

	stored, err := repo.GetByUserAndMonth("user-1", 2026, 3)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 11, stored.WorkedDays)
	assert.Equal(t, 5280, stored.WorkedMinutes)

	summaries, err := repo.GetByUserID("user-1", 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestGetByUserIDOrdersNewestFirst(t *testing.T) {
	repo, err := NewGormMonthlySummaryRepository(newTestDB(t))
	require.NoError(t, err)

	for _, month := range []int{1, 3, 2} {
		require.NoError(t, repo.Upsert(&models.MonthlySummary{
			UserID: "user-1",
			Year:   2026,
			Month:  month,
		}))
	}

	summaries, err := repo.GetByUserID("user-1", 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].Month)
	assert.Equal(t, 2, summaries[1].Month)
}
