package observability

import (
	"context"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// ReadinessChecks reports ready only when every check passes. The first
// failure is returned.
type ReadinessChecks []sharedobs.ReadinessChecker

func (r ReadinessChecks) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
