package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestComputeFees(t *testing.T) {
	tests := []struct {
		name       string
		settlement *SettlementDetails
		grossCents int64
		wantFee    int64
		wantNet    int64
	}{
		{
			name:       "explicit fee wins",
			settlement: &SettlementDetails{FeeAmount: floatPtr(1.50), NetReceivedAmount: floatPtr(90)},
			grossCents: 10000,
			wantFee:    150,
			wantNet:    9850,
		},
		{
			name: "itemized fees summed when no explicit fee",
			settlement: &SettlementDetails{
				FeeDetails: []FeeDetail{{Type: "mp_fee", Amount: 1.00}, {Type: "tax", Amount: 0.25}},
			},
			grossCents: 10000,
			wantFee:    125,
			wantNet:    9875,
		},
		{
			name:       "derived from reported net",
			settlement: &SettlementDetails{NetReceivedAmount: floatPtr(98.12)},
			grossCents: 10000,
			wantFee:    188,
			wantNet:    9812,
		},
		{
			name:       "default rate when no provider data",
			settlement: nil,
			grossCents: 20000,
			wantFee:    188,
			wantNet:    19812,
		},
		{
			name:       "empty settlement block falls back to default rate",
			settlement: &SettlementDetails{},
			grossCents: 20000,
			wantFee:    188,
			wantNet:    19812,
		},
		{
			name:       "fee clamped to gross",
			settlement: &SettlementDetails{FeeAmount: floatPtr(500)},
			grossCents: 10000,
			wantFee:    10000,
			wantNet:    0,
		},
		{
			name:       "negative derived fee clamped to zero",
			settlement: &SettlementDetails{NetReceivedAmount: floatPtr(150)},
			grossCents: 10000,
			wantFee:    0,
			wantNet:    10000,
		},
		{
			name:       "zero gross",
			settlement: nil,
			grossCents: 0,
			wantFee:    0,
			wantNet:    0,
		},
		{
			name:       "negative gross treated as zero",
			settlement: nil,
			grossCents: -500,
			wantFee:    0,
			wantNet:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := ComputeFees(tt.settlement, tt.grossCents)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantNet, net)
		})
	}
}

func TestComputeFeesInvariants(t *testing.T) {
	settlements := []*SettlementDetails{
		nil,
		{},
		{FeeAmount: floatPtr(3.33)},
		{FeeAmount: floatPtr(-2)},
		{FeeDetails: []FeeDetail{{Amount: 0.01}, {Amount: 99999}}},
		{NetReceivedAmount: floatPtr(0)},
		{NetReceivedAmount: floatPtr(123456.78)},
	}
	grosses := []int64{0, 1, 99, 10000, 20000, 987654321}

	for _, settlement := range settlements {
		for _, gross := range grosses {
			fee, net := ComputeFees(settlement, gross)
			assert.GreaterOrEqual(t, fee, int64(0))
			assert.LessOrEqual(t, fee, gross)
			assert.Equal(t, gross, fee+net)
		}
	}
}
