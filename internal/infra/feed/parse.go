package feed

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vietddude/pricewatch/internal/core/domain"
)

// PathParser builds a ParseFunc that reads the value at a gjson path.
// Numbers and numeric strings are accepted; anything else is a structural miss.
//
//	ripple.usd            CoinGecko simple/price
//	data.priceUsd         CoinCap assets/{id}
//	price                 Binance ticker/price
//	result.XXRPZUSD.c.0   Kraken Ticker
func PathParser(path string) domain.ParseFunc {
	return func(raw []byte) (float64, bool) {
		if !gjson.ValidBytes(raw) {
			return 0, false
		}
		res := gjson.GetBytes(raw, path)
		switch res.Type {
		case gjson.Number:
			return res.Num, true
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
			if err != nil {
				return 0, false
			}
			return f, true
		default:
			return 0, false
		}
	}
}
