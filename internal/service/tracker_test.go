package service

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTracking(t *testing.T) {
	placed := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		status       domain.FulfillmentStatus
		current      int
		states       []string
		showTracking bool
	}{
		{domain.FulfillmentPlaced, 0, []string{StageActive, StagePending, StagePending, StagePending}, false},
		{domain.FulfillmentProcessing, 1, []string{StageCompleted, StageActive, StagePending, StagePending}, false},
		{domain.FulfillmentShipped, 2, []string{StageCompleted, StageCompleted, StageActive, StagePending}, true},
		{domain.FulfillmentDelivered, 3, []string{StageCompleted, StageCompleted, StageCompleted, StageActive}, true},
		{"", 0, []string{StageActive, StagePending, StagePending, StagePending}, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tr := BuildTracking(&domain.Order{ID: "ORD-1", Status: tt.status, CreatedAt: placed})

			assert.Equal(t, tt.current, tr.CurrentStage)
			assert.Equal(t, tt.showTracking, tr.ShowTracking)
			require.Len(t, tr.Stages, 4)
			for i, st := range tr.Stages {
				assert.Equal(t, tt.states[i], st.State, "stage %s", st.Name)
			}
		})
	}
}

func TestBuildTracking_StageDates(t *testing.T) {
	placed := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	tr := BuildTracking(&domain.Order{Status: domain.FulfillmentPlaced, CreatedAt: placed})

	assert.Equal(t, placed, tr.Stages[0].Date)
	assert.Equal(t, placed.AddDate(0, 0, 1), tr.Stages[1].Date)
	assert.Equal(t, placed.AddDate(0, 0, 2), tr.Stages[2].Date)
	assert.Equal(t, placed.AddDate(0, 0, 5), tr.Stages[3].Date)
}

func TestTrack_NotFound(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := NewTrackerService(env.store).Track(context.Background(), "ORD-NOPE")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
