package models

import (
	"github.com/shopspring/decimal"
)

type PriceQuote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

type ContractType string

const (
	ContractTypePerpetual      ContractType = "PERPETUAL"
	ContractTypeCurrentQuarter ContractType = "CURRENT_QUARTER"
	ContractTypeNextQuarter    ContractType = "NEXT_QUARTER"
)

type ContractStatus string

const (
	ContractStatusTrading ContractStatus = "TRADING"
)

// ContractMetadata describes one futures contract as listed in the venue's
// exchange info. DeliveryTimestamp is epoch milliseconds, zero when the
// contract has no delivery (perpetuals).
type ContractMetadata struct {
	Symbol            string         `json:"symbol"`
	Pair              string         `json:"pair"`
	BaseAsset         string         `json:"base_asset"`
	QuoteAsset        string         `json:"quote_asset"`
	MarginAsset       string         `json:"margin_asset"`
	ContractType      ContractType   `json:"contract_type"`
	Status            ContractStatus `json:"status"`
	DeliveryTimestamp int64          `json:"delivery_timestamp"`
	OnboardTimestamp  int64          `json:"onboard_timestamp"`
}

type ExchangeInfo struct {
	ServerTimestamp int64              `json:"server_timestamp"`
	Contracts       []ContractMetadata `json:"contracts"`
}
