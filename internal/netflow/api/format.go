package api

import (
	"math/big"
	"strings"
)

var ten = big.NewInt(10)

// FormatUnits renders a raw integer amount as a decimal string at the given
// scale: integer quotient, then the remainder left-padded to the full width
// with trailing zeros trimmed. A zero remainder emits no fractional part.
// 1500000000000000000 @ 18 -> "1.5", 2000000000000000000 -> "2", 0 -> "0".
func FormatUnits(x *big.Int, decimals int) string {
	if decimals <= 0 {
		return x.String()
	}

	neg := x.Sign() < 0
	abs := new(big.Int).Abs(x)

	scale := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	q, r := new(big.Int).QuoRem(abs, scale, new(big.Int))

	s := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		if len(frac) < decimals {
			frac = strings.Repeat("0", decimals-len(frac)) + frac
		}
		frac = strings.TrimRight(frac, "0")
		s = s + "." + frac
	}
	if neg && s != "0" {
		s = "-" + s
	}
	return s
}
