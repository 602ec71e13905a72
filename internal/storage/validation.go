package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidRecord  = errors.New("invalid contract record")
	ErrInvalidID      = errors.New("contract id must be numeric")
	ErrInvalidFeedURL = errors.New("feed url must be http or https")

	ErrUnknownDimension = errors.New("unknown dimension")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a contract id is a non-empty run of digits.
func validateID(id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

// validateRecord validates a normalized record before persisting it.
func validateRecord(rec *model.ContractRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateID(rec.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if rec.ObjectsHash == "" || rec.RequisitesHash == "" {
		return fmt.Errorf("%w: missing hashes", ErrInvalidRecord)
	}
	if rec.FetchedAt.IsZero() {
		return fmt.Errorf("%w: missing fetch time", ErrInvalidRecord)
	}
	return nil
}

func validateFeedURL(feedURL string) error {
	if err := validateString(feedURL, "feedURL"); err != nil {
		return err
	}
	if !strings.HasPrefix(feedURL, "http://") && !strings.HasPrefix(feedURL, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidFeedURL, feedURL)
	}
	return nil
}
