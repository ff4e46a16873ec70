package payments

import "math"

// Default PIX processing fee applied when the provider reports no settlement
// data: 0.94% of the gross amount.
const defaultFeeRate = 0.0094

// FeeDetail is one itemized fee entry reported by the provider, in currency
// units.
type FeeDetail struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// SettlementDetails is the raw settlement block a provider reports for an
// approved payment, in currency units (not cents).
type SettlementDetails struct {
	FeeAmount         *float64    `json:"fee,omitempty"`
	FeeDetails        []FeeDetail `json:"fee_details,omitempty"`
	NetReceivedAmount *float64    `json:"net_received_amount,omitempty"`
	TransactionAmount *float64    `json:"transaction_amount,omitempty"`
}

// ComputeFees derives (feeCents, netCents) from provider settlement data and
// the declared gross amount. Source precedence, first match wins: explicit
// fee, itemized fee sum, gross minus reported net, default rate fallback.
// The result always satisfies 0 <= fee <= gross and fee + net == gross.
func ComputeFees(settlement *SettlementDetails, grossCents int64) (int64, int64) {
	if grossCents < 0 {
		grossCents = 0
	}

	feeCents := int64(-1)
	if settlement != nil {
		switch {
		case settlement.FeeAmount != nil:
			feeCents = toCents(*settlement.FeeAmount)
		case len(settlement.FeeDetails) > 0:
			var sum float64
			for _, detail := range settlement.FeeDetails {
				sum += detail.Amount
			}
			feeCents = toCents(sum)
		case settlement.NetReceivedAmount != nil:
			feeCents = grossCents - toCents(*settlement.NetReceivedAmount)
		}
	}

	if feeCents < 0 {
		if settlement == nil || (settlement.FeeAmount == nil && len(settlement.FeeDetails) == 0 && settlement.NetReceivedAmount == nil) {
			feeCents = int64(math.Round(float64(grossCents) * defaultFeeRate))
		} else {
			feeCents = 0
		}
	}
	if feeCents > grossCents {
		feeCents = grossCents
	}

	return feeCents, grossCents - feeCents
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
