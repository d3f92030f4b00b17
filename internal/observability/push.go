package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push delivers the run's metrics to a Prometheus Pushgateway. The job label
// groups all invocations; the instance label carries the run ID so concurrent
// runs do not clobber each other.
func (m *Metrics) Push(url, runID string) error {
	err := push.New(url, "flood_mapping").
		Grouping("run_id", runID).
		Gatherer(m.registry).
		Push()
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
