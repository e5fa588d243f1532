package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type ContractCandidate struct {
	Symbol       string   `json:"symbol"`
	DaysToExpiry float64  `json:"days_to_expiry"`
	FuturePrice  *float64 `json:"future_price,omitempty"`
}

type OpportunityKind int

const (
	OpportunityNone OpportunityKind = iota
	OpportunityCashAndCarry
	OpportunityReverseCashAndCarry
)

func (k OpportunityKind) String() string {
	switch k {
	case OpportunityNone:
		return "NONE"
	case OpportunityCashAndCarry:
		return "CASH_AND_CARRY"
	case OpportunityReverseCashAndCarry:
		return "REVERSE_CASH_AND_CARRY"
	default:
		return fmt.Sprintf("OpportunityKind(%d)", int(k))
	}
}

// Description returns the human readable label shown to operators.
func (k OpportunityKind) Description() string {
	switch k {
	case OpportunityCashAndCarry:
		return "Cash & Carry Opportunity"
	case OpportunityReverseCashAndCarry:
		return "Reverse Cash & Carry Opportunity"
	default:
		return "No Opportunity"
	}
}

func (k OpportunityKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

type ArbitrageResult struct {
	SpotPrice         float64         `json:"spot_price"`
	FuturePrice       float64         `json:"future_price"`
	TheoreticalFuture float64         `json:"theoretical_future"`
	HoursToMaturity   float64         `json:"hours_to_maturity"`
	Opportunity       OpportunityKind `json:"opportunity"`
	ArbitrageRate     float64         `json:"arbitrage_rate"`
	EvaluationTime    time.Time       `json:"evaluation_time"`
	DeliveryTime      time.Time       `json:"delivery_time"`
}

// PairEvaluation is an ArbitrageResult labelled with the pair it was
// computed for and the operator-facing description of its opportunity.
type PairEvaluation struct {
	SpotSymbol   string `json:"spot_symbol"`
	FutureSymbol string `json:"future_symbol"`
	Description  string `json:"description"`
	ArbitrageResult
}

func NewPairEvaluation(spotSymbol, futureSymbol string, result ArbitrageResult) PairEvaluation {
	return PairEvaluation{
		SpotSymbol:      spotSymbol,
		FutureSymbol:    futureSymbol,
		Description:     result.Opportunity.Description(),
		ArbitrageResult: result,
	}
}
