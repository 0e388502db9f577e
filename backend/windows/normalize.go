package windows

import (
	"encoding/xml"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/code-payments/billing-client/billing"
)

// appReceipt models the Windows Store XML receipt. Dates are ISO-8601.
type appReceipt struct {
	XMLName         xml.Name         `xml:"Receipt"`
	ReceiptDate     string           `xml:"ReceiptDate,attr"`
	ProductReceipts []productReceipt `xml:"ProductReceipt"`
}

type productReceipt struct {
	ID           string `xml:"Id,attr"`
	ProductID    string `xml:"ProductId,attr"`
	PurchaseDate string `xml:"PurchaseDate,attr"`
	ProductType  string `xml:"ProductType,attr"`
}

func classifyStatus(status PurchaseStatus) billing.ErrorKind {
	switch status {
	case StatusNotPurchased:
		return billing.ErrorUserCancelled
	case StatusAlreadyPurchased, StatusNotFulfilled:
		return billing.ErrorAlreadyOwned
	default:
		return billing.ErrorGeneral
	}
}

// parseReceipt decodes an app or transaction receipt into purchases. Entries
// without an identity are skipped; the count of skipped entries is returned
// so callers can log it.
func parseReceipt(receiptXML string) ([]*billing.Purchase, int, error) {
	var receipt appReceipt
	if err := xml.Unmarshal([]byte(receiptXML), &receipt); err != nil {
		return nil, 0, errors.Wrap(err, "decoding receipt xml")
	}

	var (
		purchases []*billing.Purchase
		skipped   int
	)
	for _, entry := range receipt.ProductReceipts {
		purchase, err := toPurchase(entry, receiptXML)
		if err != nil {
			skipped++
			continue
		}
		purchases = append(purchases, purchase)
	}
	return purchases, skipped, nil
}

func toPurchase(entry productReceipt, receiptXML string) (*billing.Purchase, error) {
	if entry.ProductID == "" {
		return nil, errors.New("receipt entry missing product id")
	}
	if entry.ID == "" {
		return nil, errors.New("receipt entry missing receipt id")
	}

	var purchaseDate time.Time
	if entry.PurchaseDate != "" {
		parsed, err := time.Parse(time.RFC3339, entry.PurchaseDate)
		if err != nil {
			return nil, errors.Wrap(err, "parsing purchase date")
		}
		purchaseDate = parsed.UTC()
	}

	return &billing.Purchase{
		ID:                 entry.ID,
		ProductID:          entry.ProductID,
		PurchaseToken:      entry.ID,
		TransactionDateUTC: purchaseDate,
		State:              billing.PurchaseStatePurchased,
		SignedData:         receiptXML,
	}, nil
}

func toProduct(listing Listing) *billing.Product {
	micros := decimal.NewFromFloat(listing.Price).Mul(decimal.NewFromInt(1_000_000)).IntPart()

	localized := listing.FormattedPrice
	if localized == "" && listing.CurrencyCode != "" {
		localized = billing.FormatPrice(micros, listing.CurrencyCode)
	}

	return &billing.Product{
		ProductID:      listing.ProductID,
		DisplayName:    listing.Name,
		Description:    listing.Description,
		LocalizedPrice: localized,
		PriceMicros:    micros,
		CurrencyCode:   listing.CurrencyCode,
	}
}
