package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/usecase"
)

func TestCalculateDisciplineScore(t *testing.T) {
	tests := []struct {
		name string
		in   domain.DisciplineScoreInputs
		want float64
	}{
		{"all acknowledged", domain.DisciplineScoreInputs{TotalAlerts: 10, AcknowledgedAlerts: 10}, 100},
		{"ten ignored", domain.DisciplineScoreInputs{TotalAlerts: 10}, 50},
		{"floor at zero", domain.DisciplineScoreInputs{TotalAlerts: 30}, 0},
		{"cap at hundred", domain.DisciplineScoreInputs{PositiveActions: 10}, 100},
		{"mixed", domain.DisciplineScoreInputs{TotalAlerts: 8, AcknowledgedAlerts: 4, PositiveActions: 3}, 86},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.CalculateDisciplineScore(tt.in))
		})
	}
}

func TestScoreTierFor(t *testing.T) {
	tests := []struct {
		score float64
		badge string
	}{
		{100, "Diamond"},
		{90, "Diamond"},
		{89, "Platinum"},
		{89.5, "Platinum"},
		{75, "Platinum"},
		{74, "Silver"},
		{60, "Silver"},
		{59, "Bronze"},
		{40, "Bronze"},
		{39, "Alert"},
		{0, "Alert"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.badge, usecase.ScoreTierFor(tt.score).Badge, "score %v", tt.score)
	}
}
