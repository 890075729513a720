package aggregate

import (
	"fmt"
	"strings"
)

// PartialAggregationError reports a detail view assembled from only some of
// its endpoints.
type PartialAggregationError struct {
	Partial         Merged
	FailedEndpoints []string
	Causes          map[string]error
}

func (e *PartialAggregationError) Error() string {
	return fmt.Sprintf("partial aggregation: %d endpoint(s) failed: %s",
		len(e.FailedEndpoints), strings.Join(e.FailedEndpoints, ", "))
}
