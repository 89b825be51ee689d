package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/sendbulk-reconciler/internal/platform/calendar"
	"github.com/shopspring/decimal"
)

const (
	MaxPages      = 8
	MinRecipients = 10

	firstPageRunes = 70
	nextPageRunes  = 67
)

var (
	optOutSuffix = regexp.MustCompile(`لغو ?11$`)
	mobileNumber = regexp.MustCompile(`^09\d{9}$`)
)

// Registration is a batch the gateway has already accepted
type Registration struct {
	BatchID            string
	OwnerID            int64
	Title              string
	Message            string
	Recipients         []string
	ReservedCredit     decimal.Decimal
	NotificationTarget string
}

// ValidationError rejects a registration before anything is written
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// MessagePages is the number of SMS parts the gateway bills for message.
func MessagePages(message string) int {
	n := utf8.RuneCountInString(message)
	if n <= firstPageRunes {
		return 1
	}
	return (n-firstPageRunes+nextPageRunes-1)/nextPageRunes + 1
}

// ValidRecipients normalizes Persian and Arabic digits, drops malformed
// numbers and duplicates, and keeps the first-seen order.
func ValidRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	valid := make([]string, 0, len(recipients))
	for _, r := range recipients {
		number := calendar.NormalizeDigits(strings.TrimSpace(r))
		if !mobileNumber.MatchString(number) {
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		valid = append(valid, number)
	}
	return valid
}

// validate checks reg and returns the distinct valid recipients.
func (reg Registration) validate() ([]string, error) {
	if strings.TrimSpace(reg.BatchID) == "" {
		return nil, &ValidationError{Field: "batch_id", Message: "must not be empty"}
	}
	if reg.OwnerID <= 0 {
		return nil, &ValidationError{Field: "owner_id", Message: "must be positive"}
	}
	if strings.TrimSpace(reg.Title) == "" {
		return nil, &ValidationError{Field: "title", Message: "must not be empty"}
	}

	message := strings.TrimSpace(reg.Message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Message: "must not be empty"}
	}
	if !optOutSuffix.MatchString(message) {
		return nil, &ValidationError{Field: "message", Message: "must end with the opt-out text لغو11 or لغو 11"}
	}
	if pages := MessagePages(message); pages > MaxPages {
		return nil, &ValidationError{Field: "message", Message: fmt.Sprintf("is %d pages long, at most %d are allowed", pages, MaxPages)}
	}

	if !reg.ReservedCredit.IsPositive() {
		return nil, &ValidationError{Field: "reserved_credit", Message: "must be positive"}
	}
	if !shared.FitsCreditScale(reg.ReservedCredit) {
		return nil, &ValidationError{Field: "reserved_credit", Message: "must have at most 2 decimal places"}
	}

	recipients := ValidRecipients(reg.Recipients)
	if len(recipients) < MinRecipients {
		return nil, &ValidationError{
			Field:   "recipients",
			Message: fmt.Sprintf("at least %d distinct valid numbers are required, got %d", MinRecipients, len(recipients)),
		}
	}
	return recipients, nil
}
