package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountBits is the width of a ledger amount.
const AmountBits = 128

// DOTDecimals is the number of decimal places in one DOT.
const DOTDecimals = 10

var (
	ErrAmountNegative = errors.New("amount must not be negative")
	ErrAmountOverflow = fmt.Errorf("amount exceeds %d bits", AmountBits)
	ErrAmountSyntax   = errors.New("amount is not a base-10 integer")
)

// Amount is an unsigned 128-bit integer in the smallest unit (planck). The
// zero value is 0. Amount values are immutable; every accessor copies.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// AmountFromBig validates and copies b.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, ErrAmountNegative
	}
	if b.BitLen() > AmountBits {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountSyntax, s)
	}
	return AmountFromBig(b)
}

// ParseUnits converts a human decimal such as "1.5" into an Amount with the
// given number of decimals. Extra fractional digits are truncated.
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrAmountSyntax, s)
	}
	if d.IsNegative() {
		return Amount{}, ErrAmountNegative
	}
	return AmountFromBig(d.Shift(decimals).Truncate(0).BigInt())
}

// Decimal renders the amount in human units, trimming trailing zeros.
func (a Amount) Decimal(decimals int32) string {
	return decimal.NewFromBigInt(a.Big(), -decimals).String()
}

// Big returns a copy of the value.
func (a Amount) Big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) IsZero() bool {
	return a.v == nil || a.v.Sign() == 0
}

func (a Amount) Cmp(o Amount) int {
	return a.Big().Cmp(o.Big())
}

func (a Amount) Equal(o Amount) bool {
	return a.Cmp(o) == 0
}

func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

// MarshalText encodes the amount as a decimal string so JSON keeps full
// 128-bit precision.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalJSON accepts both quoted and bare JSON numbers. A JSON null
// leaves the amount unchanged.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	return a.UnmarshalText(data)
}
