package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

const DefaultCurrency = "NGN"

// Money хранит сумму с точностью до двух знаков, как numeric(8,2) в базе.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "amount cannot be negative")
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount.Round(2), Currency: currency}, nil
}

// ParseMoney разбирает строковое представление decimal из базы.
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, apperror.Wrap(err, apperror.ErrCodeValidation, "invalid amount")
	}
	return NewMoney(d, currency)
}

func Zero() Money {
	return Money{Amount: decimal.Zero, Currency: DefaultCurrency}
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.StringFixed(2))
}
