package domain

import "github.com/shopspring/decimal"

// Trade is one fill of a broker order.
type Trade struct {
	BrokerOrderID string
	TradeID       string
	Quantity      int64
	AveragePrice  decimal.Decimal
}

// FillSummary is the aggregate execution of one order.
type FillSummary struct {
	AveragePrice   decimal.Decimal
	FilledQuantity int64
}

// SummarizeFills computes the volume-weighted average price and total
// filled quantity of an order's trades. No trades yield a zero summary and
// a single trade is returned verbatim; otherwise the average is
// sum(quantity × price) / sum(quantity) rounded to two decimal places.
func SummarizeFills(trades []Trade) FillSummary {
	switch len(trades) {
	case 0:
		return FillSummary{AveragePrice: decimal.Zero}
	case 1:
		return FillSummary{
			AveragePrice:   trades[0].AveragePrice,
			FilledQuantity: trades[0].Quantity,
		}
	}

	var totalQty int64
	totalCost := decimal.Zero
	for _, t := range trades {
		totalQty += t.Quantity
		totalCost = totalCost.Add(t.AveragePrice.Mul(decimal.NewFromInt(t.Quantity)))
	}
	if totalQty == 0 {
		return FillSummary{AveragePrice: decimal.Zero}
	}
	return FillSummary{
		AveragePrice:   RoundPrice(totalCost.Div(decimal.NewFromInt(totalQty))),
		FilledQuantity: totalQty,
	}
}
