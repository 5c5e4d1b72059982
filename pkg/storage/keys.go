package storage

import "fmt"

// Pebble key schema. Prefix-based so related records can be range-scanned,
// with zero-padded timestamps where lexicographic order must follow time.
const (
	prefixUser       = "user:"  // user:{id}
	prefixInstrument = "inst:"  // inst:{ticker}
	prefixBalance    = "bal:"   // bal:{userID}:{asset}
	prefixOrder      = "ord:"   // ord:{userID}:{orderID}
	prefixTrade      = "trade:" // trade:{ticker}:{timestamp}:{txID}
)

func userKey(id string) []byte {
	return []byte(prefixUser + id)
}

func instrumentKey(ticker string) []byte {
	return []byte(prefixInstrument + ticker)
}

func balanceKey(userID, asset string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, userID, asset))
}

func orderKey(userID, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOrder, userID, orderID))
}

// tradeKey zero-pads the timestamp (20 digits) so iteration within a ticker
// prefix is chronological.
func tradeKey(ticker string, timestamp int64, txID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixTrade, ticker, timestamp, txID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
