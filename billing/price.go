package billing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const microsPerUnit = 1_000_000

// PriceAmount returns the product price in currency units.
func (p *Product) PriceAmount() decimal.Decimal {
	return decimal.New(p.PriceMicros, 0).Div(decimal.New(microsPerUnit, 0))
}

// FormatPrice renders a localized price string from micros and an ISO 4217
// currency code. Backends that report a pre-formatted price keep it; the
// others synthesize one with this.
func FormatPrice(priceMicros int64, currencyCode string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return decimal.New(priceMicros, 0).Div(decimal.New(microsPerUnit, 0)).StringFixed(2)
	}

	amount := float64(priceMicros) / float64(microsPerUnit)
	printer := message.NewPrinter(language.English)
	return printer.Sprintf("%v", currency.Symbol(unit.Amount(amount)))
}
