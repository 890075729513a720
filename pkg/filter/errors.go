package filter

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/realty-gateway/pkg/domain"
)

// InvalidFilterError reports a rejected filter.
type InvalidFilterError struct {
	Key        string
	ObjectType domain.ObjectType
	Reason     string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q for %s: %s", e.Key, e.ObjectType, e.Reason)
}

// Is matches domain.ErrInvalidFilter.
func (e *InvalidFilterError) Is(target error) bool {
	return target == domain.ErrInvalidFilter
}

// IsInvalidFilter reports whether err is a rejected filter.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, domain.ErrInvalidFilter)
}
