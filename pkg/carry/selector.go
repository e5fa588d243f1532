package carry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gregtusar/cashcarry/pkg/models"
)

const (
	msPerHour = 1000 * 60 * 60
	msPerDay  = msPerHour * 24
)

var ErrNotFound = errors.New("contract not found")

// SelectFutureContracts returns the dated contracts on base/quote that are
// trading and deliver within maxDaysToExpiry days of serverTimestamp, nearest
// expiry first. Contracts with equal expiry keep their metadata order.
func SelectFutureContracts(contracts []models.ContractMetadata, serverTimestamp int64, base, quote string, maxDaysToExpiry float64) []models.ContractCandidate {
	results := make([]models.ContractCandidate, 0)

	for _, c := range contracts {
		if c.BaseAsset != base || c.QuoteAsset != quote {
			continue
		}
		if c.ContractType == models.ContractTypePerpetual {
			continue
		}
		if c.Status != models.ContractStatusTrading {
			continue
		}
		if c.DeliveryTimestamp == 0 {
			continue
		}

		days := DaysToExpiry(c.DeliveryTimestamp, serverTimestamp)
		// already expired or in delivery
		if days < 0 {
			continue
		}
		if days > maxDaysToExpiry {
			continue
		}

		results = append(results, models.ContractCandidate{
			Symbol:       c.Symbol,
			DaysToExpiry: days,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DaysToExpiry < results[j].DaysToExpiry
	})

	return results
}

// FindContract returns the metadata entry for symbol.
func FindContract(contracts []models.ContractMetadata, symbol string) (models.ContractMetadata, error) {
	for _, c := range contracts {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return models.ContractMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

// ResolveDeliveryInfo looks up symbol in contracts and returns its delivery
// timestamp together with the server timestamp of the metadata snapshot.
func ResolveDeliveryInfo(contracts []models.ContractMetadata, serverTimestamp int64, symbol string) (int64, int64, error) {
	c, err := FindContract(contracts, symbol)
	if err != nil {
		return 0, 0, err
	}
	return c.DeliveryTimestamp, serverTimestamp, nil
}

func DaysToExpiry(deliveryTimestamp, nowTimestamp int64) float64 {
	return float64(deliveryTimestamp-nowTimestamp) / msPerDay
}

func HoursToMaturity(deliveryTimestamp, nowTimestamp int64) float64 {
	return float64(deliveryTimestamp-nowTimestamp) / msPerHour
}
