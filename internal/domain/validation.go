package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationErrors maps a request field to the reason it was rejected.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// IsValidAccountNumber reports whether s is exactly AccountNumberLength ASCII digits.
func IsValidAccountNumber(s string) bool {
	if len(s) != AccountNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// Validate checks a transfer request before it reaches the transfer engine.
func (r TransferRequest) Validate() error {
	errs := ValidationErrors{}
	if !r.Amount.IsPositive() {
		errs["amount"] = "must be greater than zero"
	} else if !isMoneyScale(r.Amount) {
		errs["amount"] = "must have at most 2 decimal places"
	}
	if !IsValidAccountNumber(r.SourceBankAccountNumber) {
		errs["sourceBankAccountNumber"] = "must be exactly 20 digits"
	}
	if !IsValidAccountNumber(r.DestinationBankAccountNumber) {
		errs["destinationBankAccountNumber"] = "must be exactly 20 digits"
	}
	if _, bad := errs["destinationBankAccountNumber"]; !bad && r.SourceBankAccountNumber == r.DestinationBankAccountNumber {
		errs["destinationBankAccountNumber"] = "must differ from the source account"
	}
	return errs.orNil()
}

// Validate checks an account provisioning request.
func (r CreateAccountRequest) Validate() error {
	errs := ValidationErrors{}
	if r.OwnerID <= 0 {
		errs["ownerId"] = "is required"
	}
	if r.AccountTypeID <= 0 {
		errs["accountTypeId"] = "is required"
	}
	if !isCurrencyCode(r.CurrencyCode) {
		errs["currency"] = "must be a 3-letter ISO 4217 code"
	}
	return errs.orNil()
}

// Validate checks an administrative balance adjustment.
func (r BalanceAdjustmentRequest) Validate() error {
	errs := ValidationErrors{}
	if r.Amount.IsZero() {
		errs["amount"] = "must not be zero"
	} else if !isMoneyScale(r.Amount) {
		errs["amount"] = "must have at most 2 decimal places"
	}
	if strings.TrimSpace(r.Reason) == "" {
		errs["reason"] = "is required"
	}
	return errs.orNil()
}

// Validate checks an account type payload. Rates are fractions, so 0.01 is 1%.
func (r AccountTypeRequest) Validate() error {
	errs := ValidationErrors{}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		errs["name"] = "is required"
	} else if len(name) > 64 {
		errs["name"] = "must be at most 64 characters"
	}
	if !isRate(r.TransactionCommission) {
		errs["transactionCommission"] = "must be between 0 (inclusive) and 1 (exclusive)"
	}
	if !isRate(r.ExchangeCommission) {
		errs["currencyExchangeCommission"] = "must be between 0 (inclusive) and 1 (exclusive)"
	}
	return errs.orNil()
}

// Validate checks a currency payload.
func (r CurrencyRequest) Validate() error {
	errs := ValidationErrors{}
	if !isCurrencyCode(r.Code) {
		errs["code"] = "must be a 3-letter ISO 4217 code"
	}
	if strings.TrimSpace(r.Name) == "" {
		errs["name"] = "is required"
	}
	return errs.orNil()
}

func isRate(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThan(decimal.NewFromInt(1))
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
