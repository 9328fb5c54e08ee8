package pipeline

import (
	"log/slog"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
)

// Decoder turns fetched feed bytes into observations, recording parse
// metrics and logging recovered field errors.
type Decoder struct {
	loc     *time.Location
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDecoder creates a Decoder. Naive timestamps are read in dataLoc.
func NewDecoder(dataLoc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Decoder {
	return &Decoder{
		loc:     dataLoc,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *Decoder) Decode(raw []byte) ([]domain.Observation, error) {
	res, err := domain.Parse(raw, d.loc)
	if err != nil {
		d.metrics.FormatErrors.Inc()
		return nil, err
	}

	d.metrics.RowsParsed.Add(float64(len(res.Observations)))
	for _, fe := range res.FieldErrors {
		d.metrics.FieldErrors.WithLabelValues(fe.Column).Inc()
		d.logger.Debug("field treated as absent",
			"row", fe.Row,
			"column", fe.Column,
			"raw", fe.Raw,
			"error", fe.Err,
		)
	}
	if n := len(res.FieldErrors); n > 0 {
		d.logger.Warn("feed contained invalid fields", "rows", len(res.Observations), "field_errors", n)
	}
	return res.Observations, nil
}
