package carry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/cashcarry/pkg/models"
)

const serverTs int64 = 1_760_000_000_000

func dated(symbol string, days float64) models.ContractMetadata {
	return models.ContractMetadata{
		Symbol:            symbol,
		BaseAsset:         "BTC",
		QuoteAsset:        "USDT",
		ContractType:      models.ContractTypeCurrentQuarter,
		Status:            models.ContractStatusTrading,
		DeliveryTimestamp: serverTs + int64(days*msPerDay),
	}
}

func TestSelectFutureContracts_Filters(t *testing.T) {
	perp := dated("BTCUSDT", 10)
	perp.ContractType = models.ContractTypePerpetual

	settling := dated("BTCUSDT_250926", 5)
	settling.Status = "SETTLING"

	noDelivery := dated("BTCUSDT_NODATE", 0)
	noDelivery.DeliveryTimestamp = 0

	otherQuote := dated("BTCUSDC_251226", 20)
	otherQuote.QuoteAsset = "USDC"

	otherBase := dated("ETHUSDT_251226", 20)
	otherBase.BaseAsset = "ETH"

	expired := dated("BTCUSDT_250627", -1)
	tooFar := dated("BTCUSDT_260327", 120)
	next := dated("BTCUSDT_260130", 45)
	next.ContractType = models.ContractTypeNextQuarter
	current := dated("BTCUSDT_251226", 12.5)

	contracts := []models.ContractMetadata{perp, settling, noDelivery, otherQuote, otherBase, expired, tooFar, next, current}

	got := SelectFutureContracts(contracts, serverTs, "BTC", "USDT", 60)

	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT_251226", got[0].Symbol)
	assert.InDelta(t, 12.5, got[0].DaysToExpiry, 1e-9)
	assert.Equal(t, "BTCUSDT_260130", got[1].Symbol)
	assert.InDelta(t, 45, got[1].DaysToExpiry, 1e-9)
}

func TestSelectFutureContracts_Bounds(t *testing.T) {
	atZero := dated("BTCUSDT_NOW", 0)
	atMax := dated("BTCUSDT_MAX", 60)

	got := SelectFutureContracts([]models.ContractMetadata{atMax, atZero}, serverTs, "BTC", "USDT", 60)

	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT_NOW", got[0].Symbol)
	assert.Equal(t, "BTCUSDT_MAX", got[1].Symbol)
}

func TestSelectFutureContracts_StableTies(t *testing.T) {
	a := dated("BTCUSDT_A", 30)
	b := dated("BTCUSDT_B", 30)
	c := dated("BTCUSDT_C", 10)

	got := SelectFutureContracts([]models.ContractMetadata{a, b, c}, serverTs, "BTC", "USDT", 60)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"BTCUSDT_C", "BTCUSDT_A", "BTCUSDT_B"}, symbols(got))
}

func TestSelectFutureContracts_Empty(t *testing.T) {
	got := SelectFutureContracts(nil, serverTs, "BTC", "USDT", 60)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = SelectFutureContracts([]models.ContractMetadata{dated("BTCUSDT_251226", 10)}, serverTs, "ETH", "USDT", 60)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSelectFutureContracts_Invariants(t *testing.T) {
	var contracts []models.ContractMetadata
	statuses := []models.ContractStatus{models.ContractStatusTrading, "PENDING_TRADING", "SETTLING"}
	types := []models.ContractType{models.ContractTypePerpetual, models.ContractTypeCurrentQuarter, models.ContractTypeNextQuarter}
	for i := 0; i < 60; i++ {
		c := dated("C"+string(rune('A'+i%26))+string(rune('a'+i/26)), float64(i*7%150)-20)
		c.Status = statuses[i%len(statuses)]
		c.ContractType = types[i%len(types)]
		contracts = append(contracts, c)
	}

	const maxDays = 45.0
	got := SelectFutureContracts(contracts, serverTs, "BTC", "USDT", maxDays)

	byName := make(map[string]models.ContractMetadata, len(contracts))
	for _, c := range contracts {
		byName[c.Symbol] = c
	}
	for i, cand := range got {
		meta := byName[cand.Symbol]
		assert.NotEqual(t, models.ContractTypePerpetual, meta.ContractType)
		assert.Equal(t, models.ContractStatusTrading, meta.Status)
		assert.GreaterOrEqual(t, cand.DaysToExpiry, 0.0)
		assert.LessOrEqual(t, cand.DaysToExpiry, maxDays)
		if i > 0 {
			assert.LessOrEqual(t, got[i-1].DaysToExpiry, cand.DaysToExpiry)
		}
	}
}

func TestResolveDeliveryInfo(t *testing.T) {
	contracts := []models.ContractMetadata{dated("BTCUSDT_251226", 30), dated("BTCUSDT_260327", 120)}

	delivery, server, err := ResolveDeliveryInfo(contracts, serverTs, "BTCUSDT_260327")
	require.NoError(t, err)
	assert.Equal(t, contracts[1].DeliveryTimestamp, delivery)
	assert.Equal(t, serverTs, server)
}

func TestResolveDeliveryInfo_NotFound(t *testing.T) {
	contracts := []models.ContractMetadata{dated("BTCUSDT_251226", 30)}

	delivery, server, err := ResolveDeliveryInfo(contracts, serverTs, "ETHUSDT_251226")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "ETHUSDT_251226")
	assert.Zero(t, delivery)
	assert.Zero(t, server)

	_, _, err = ResolveDeliveryInfo(nil, serverTs, "BTCUSDT_251226")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindContract(t *testing.T) {
	perp := models.ContractMetadata{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", ContractType: models.ContractTypePerpetual, Status: models.ContractStatusTrading, DeliveryTimestamp: 4_133_404_800_000}
	contracts := []models.ContractMetadata{perp, dated("BTCUSDT_251226", 30)}

	got, err := FindContract(contracts, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, perp, got)

	_, err = FindContract(contracts, "BTCUSDT_991231")
	assert.ErrorIs(t, err, ErrNotFound)
}

func symbols(cs []models.ContractCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Symbol
	}
	return out
}
