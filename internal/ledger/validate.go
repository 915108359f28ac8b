package ledger

import (
	"strings"

	"github.com/trustledger/trustledger/internal/model"
)

func validateTrustAccount(p CreateTrustAccountParams) error {
	var errs model.ValidationErrors
	required := []struct {
		field, value string
	}{
		{"merchant_id", p.MerchantID},
		{"account_number", p.AccountNumber},
		{"bank_name", p.BankName},
		{"routing_number", p.RoutingNumber},
		{"account_type", p.AccountType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, &model.ValidationError{Field: r.field, Description: "required"})
		}
	}

	if rn := strings.TrimSpace(p.RoutingNumber); rn != "" && !ValidRoutingNumber(rn) {
		errs = append(errs, &model.ValidationError{Field: "routing_number", Description: "not a valid ABA routing number"})
	}
	if at := strings.TrimSpace(p.AccountType); at != "" && !strings.EqualFold(at, model.AccountTypeIOLTA) {
		errs = append(errs, &model.ValidationError{Field: "account_type", Description: "must be " + model.AccountTypeIOLTA})
	}
	if p.InterestRate.IsNegative() {
		errs = append(errs, &model.ValidationError{Field: "interest_rate", Description: "must not be negative"})
	}
	return errs.Err()
}

// ValidRoutingNumber checks the nine-digit ABA checksum.
func ValidRoutingNumber(rn string) bool {
	if len(rn) != 9 {
		return false
	}
	weights := [3]int{3, 7, 1}
	sum := 0
	for i, r := range rn {
		if r < '0' || r > '9' {
			return false
		}
		sum += int(r-'0') * weights[i%3]
	}
	return sum%10 == 0
}
