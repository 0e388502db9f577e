package billing

// Deduplicate collapses purchase records that refer to the same grant, keyed
// by (ProductID, PurchaseToken). The record with the most recent
// TransactionDateUTC wins on conflict. First-seen order is preserved, so the
// function is idempotent: Deduplicate(Deduplicate(l)) == Deduplicate(l).
//
// Required because the same grant may be redelivered through both an owned
// enumeration and an independent restore event during one session.
func Deduplicate(purchases []*Purchase) []*Purchase {
	if len(purchases) <= 1 {
		return purchases
	}

	type grantKey struct {
		productID string
		token     string
	}

	position := make(map[grantKey]int, len(purchases))
	result := make([]*Purchase, 0, len(purchases))

	for _, p := range purchases {
		if p == nil {
			continue
		}

		key := grantKey{productID: p.ProductID, token: p.PurchaseToken}

		at, seen := position[key]
		if !seen {
			position[key] = len(result)
			result = append(result, p)
			continue
		}

		if p.TransactionDateUTC.After(result[at].TransactionDateUTC) {
			result[at] = p
		}
	}

	return result
}
