package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// fetchCounterValue finds the counter sample of family name whose label
// matches value.
func fetchCounterValue(families []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, sample := range mf.GetMetric() {
			for _, pair := range sample.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return sample.GetCounter().GetValue(), nil
				}
			}
		}
		return 0, fmt.Errorf("%s has no sample with %s=%q", name, label, value)
	}
	return 0, fmt.Errorf("metric family %s not gathered", name)
}
