package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money is a currency amount in minor units (cents).
// Sums over large invoice sets stay exact; conversion to and from
// decimal strings only happens at the wire and presentation edges.
type Money int64

// MoneyFromDecimal rounds d to the nearest cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// MoneyFromFloat converts a float amount. NaN and infinities become zero.
func MoneyFromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// ParseMoney parses loosely formatted amounts such as "6000.00", "$4,500" or " 12 ".
// Anything unparseable yields zero instead of an error.
func ParseMoney(s string) Money {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the plain decimal form, e.g. "4500.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders a display amount, e.g. "$4,500.00".
func (m Money) Format() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(v/100), v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Malformed values
// decode to zero rather than failing the whole payload.
func (m *Money) UnmarshalJSON(b []byte) error {
	*m = CoerceMoney(b)
	return nil
}

// CoerceMoney decodes a raw JSON value into Money, falling back to zero.
func CoerceMoney(raw json.RawMessage) Money {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return ParseMoney(s)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return 0
	}
	return MoneyFromDecimal(d)
}
