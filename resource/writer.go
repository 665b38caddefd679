package resource

import (
	"context"

	"github.com/hupe1980/polyalloc/adapter"
)

// ThrottledWriter wraps an adapter.RowWriter with the controller's
// throughput limit.
type ThrottledWriter struct {
	w  adapter.RowWriter
	rc *Controller
}

// NewThrottledWriter creates a new ThrottledWriter.
func NewThrottledWriter(w adapter.RowWriter, rc *Controller) *ThrottledWriter {
	return &ThrottledWriter{w: w, rc: rc}
}

func (w *ThrottledWriter) WriteRows(ctx context.Context, t adapter.Table, rows []adapter.Row) error {
	if err := w.rc.WaitRows(ctx, len(rows)); err != nil {
		return err
	}
	return w.w.WriteRows(ctx, t, rows)
}
