package handler

import (
	"fmt"

	"github.com/josh-kwaku/corebank/internal/domain"
)

// requestAmount resolves an amount sent either as integer minor units or as
// a major-unit decimal string such as "1500.75". An invalid currency is
// reported by the caller, so it yields no amount error here.
func requestAmount(minor int64, major string, currency domain.Currency) (int64, *FieldError) {
	switch {
	case major != "" && minor != 0:
		return 0, &FieldError{Field: "amount", Message: "send either amount or amount_decimal, not both"}
	case major != "":
		if !currency.IsValid() {
			return 0, nil
		}
		m, err := domain.ParseMoney(major, currency)
		if err != nil {
			return 0, &FieldError{
				Field:   "amount_decimal",
				Message: fmt.Sprintf("must be a positive amount with at most %d decimals", currency.Exponent()),
			}
		}
		return m.Amount, nil
	case minor <= 0:
		return 0, &FieldError{Field: "amount", Message: "must be greater than 0"}
	}
	return minor, nil
}
