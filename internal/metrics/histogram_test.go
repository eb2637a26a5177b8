package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// dtoHistogram reads count and sum from a single histogram series.
type dtoHistogram struct {
	count uint64
	sum   float64
}

func (h *dtoHistogram) read(o prometheus.Observer) error {
	m := &dto.Metric{}
	if err := o.(prometheus.Metric).Write(m); err != nil {
		return err
	}
	h.count = m.GetHistogram().GetSampleCount()
	h.sum = m.GetHistogram().GetSampleSum()
	return nil
}
