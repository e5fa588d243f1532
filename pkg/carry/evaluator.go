// Package carry prices dated futures against spot under cost-of-carry and
// classifies cash-and-carry opportunities net of trading fees.
package carry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gregtusar/cashcarry/pkg/models"
)

var (
	ErrInvalidInput    = errors.New("invalid evaluation input")
	ErrContractExpired = errors.New("contract already delivered")
)

// EvaluationInput carries everything Evaluate needs. BorrowRate is the rate
// per hour; the fair value compounds it once per hour to maturity.
type EvaluationInput struct {
	SpotPrice         float64
	FuturePrice       float64
	BorrowRate        float64
	DeliveryTimestamp int64
	NowTimestamp      int64
	SpotFeeRate       float64
	FutureFeeRate     float64
	RiskRateAsked     float64
}

func (in EvaluationInput) validate() error {
	if !(in.SpotPrice > 0) {
		return fmt.Errorf("%w: spot price %v", ErrInvalidInput, in.SpotPrice)
	}
	if !(in.FuturePrice > 0) {
		return fmt.Errorf("%w: future price %v", ErrInvalidInput, in.FuturePrice)
	}
	if in.BorrowRate <= -1 || math.IsNaN(in.BorrowRate) {
		return fmt.Errorf("%w: borrow rate %v", ErrInvalidInput, in.BorrowRate)
	}
	if in.SpotFeeRate < 0 || in.FutureFeeRate < 0 || in.RiskRateAsked < 0 {
		return fmt.Errorf("%w: negative fee or risk rate", ErrInvalidInput)
	}
	if in.DeliveryTimestamp <= in.NowTimestamp {
		return fmt.Errorf("%w: delivery %d not after %d", ErrContractExpired, in.DeliveryTimestamp, in.NowTimestamp)
	}
	return nil
}

// TheoreticalFuture is the fair futures price: spot compounded at the hourly
// borrow rate over hours periods.
func TheoreticalFuture(spot, borrowRate, hours float64) float64 {
	return spot * math.Pow(1+borrowRate, hours)
}

// Classify applies the fee adjusted thresholds. Cash and carry is tested
// first; NONE always comes with a zero rate.
func Classify(spot, future, theoretical, spotFeeRate, futureFeeRate, riskRateAsked float64) (models.OpportunityKind, float64) {
	feesSpot := spot * spotFeeRate
	feesFuture := future * futureFeeRate

	if future-feesFuture > (theoretical+feesSpot)*(1+riskRateAsked) {
		return models.OpportunityCashAndCarry, (future-feesFuture)/(theoretical+feesSpot) - 1
	}
	if future+feesFuture < (theoretical-feesSpot)*(1-riskRateAsked) {
		return models.OpportunityReverseCashAndCarry, 1 - (future+feesFuture)/(theoretical-feesSpot)
	}
	return models.OpportunityNone, 0
}

// Evaluate compares the observed futures price to its cost-of-carry fair
// value. It performs no I/O and reads no clock.
func Evaluate(in EvaluationInput) (models.ArbitrageResult, error) {
	if err := in.validate(); err != nil {
		return models.ArbitrageResult{}, err
	}

	hours := HoursToMaturity(in.DeliveryTimestamp, in.NowTimestamp)
	theoretical := TheoreticalFuture(in.SpotPrice, in.BorrowRate, hours)
	kind, rate := Classify(in.SpotPrice, in.FuturePrice, theoretical, in.SpotFeeRate, in.FutureFeeRate, in.RiskRateAsked)

	return models.ArbitrageResult{
		SpotPrice:         in.SpotPrice,
		FuturePrice:       in.FuturePrice,
		TheoreticalFuture: theoretical,
		HoursToMaturity:   hours,
		Opportunity:       kind,
		ArbitrageRate:     rate,
		EvaluationTime:    time.UnixMilli(in.NowTimestamp).UTC(),
		DeliveryTime:      time.UnixMilli(in.DeliveryTimestamp).UTC(),
	}, nil
}
