package market

import "strings"

// knownQuotes are the quote currencies recognized when splitting a bare
// exchange symbol like "BTCUSDT".
var knownQuotes = []string{"USDT", "USDC", "FDUSD", "TUSD", "BTC", "ETH", "BNB"}

// NormalizeSymbol maps user-facing instrument spellings ("btc/usdt",
// " ethusdt ", "SOL/USDT:USDT") onto the exchange symbol form ("BTCUSDT").
func NormalizeSymbol(instrument string) string {
	s := strings.ToUpper(strings.TrimSpace(instrument))
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.ReplaceAll(s, "/", "")
}

// SplitSymbol breaks an exchange symbol into base and quote. The quote is
// matched against the known quote currencies; an unrecognized symbol returns
// ok=false with the whole input as base.
func SplitSymbol(instrument string) (base, quote string, ok bool) {
	s := NormalizeSymbol(instrument)
	for _, q := range knownQuotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return s, "", false
}
