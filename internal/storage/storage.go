package storage

import "agentScope/internal/model"

// AlertSink delivers alert envelopes to a downstream consumer.
type AlertSink interface {
	PutAlertBatch(alerts []model.AlertEnvelope) error
}

// MultiSink fans one batch out to several sinks, stopping at the first error.
type MultiSink struct {
	sinks []AlertSink
}

func NewMultiSink(sinks ...AlertSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) PutAlertBatch(alerts []model.AlertEnvelope) error {
	for _, sink := range m.sinks {
		if err := sink.PutAlertBatch(alerts); err != nil {
			return err
		}
	}
	return nil
}
