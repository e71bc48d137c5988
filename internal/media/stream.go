package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/metrics"
)

// ErrClientGone marks a stream the client stopped reading.
var ErrClientGone = errors.New("client disconnected")

// ErrSourceOpen marks a failure that happened before any header was
// written. It wraps the storage error.
var ErrSourceOpen = errors.New("failed to open source")

// writeTracker remembers whether a failure came from the response side.
type writeTracker struct {
	w   io.Writer
	err error
}

func (t *writeTracker) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// Serve writes the planned window of res to w. The source is opened before
// any header is written, so an open failure leaves the response untouched
// and the caller can still send an error status. Once headers are out,
// failures end the stream and are only reported to the caller.
// The source reader is always closed.
func Serve(w http.ResponseWriter, r *http.Request, plan DeliveryPlan, res *Resource) error {
	var src io.ReadCloser
	if r.Method != http.MethodHead && plan.Length > 0 {
		var err error
		src, err = res.Open(r.Context(), plan.Start, plan.Length)
		if err != nil {
			return fmt.Errorf("%w %s: %w", ErrSourceOpen, res.Key, err)
		}
		defer src.Close()
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(plan.Length, 10))
	if plan.Partial() {
		h.Set("Content-Range", plan.ContentRange())
	}
	w.WriteHeader(plan.Status)

	if src == nil {
		metrics.RecordStream(plan.Status, 0)
		return nil
	}

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	dst := &writeTracker{w: w}
	written, err := io.CopyN(dst, src, plan.Length)
	metrics.RecordStream(plan.Status, written)
	if err == nil {
		return nil
	}

	if dst.err != nil || r.Context().Err() != nil {
		metrics.StreamAborts.WithLabelValues("client").Inc()
		logger.Debug("stream aborted by client",
			logger.String("key", res.Key),
			logger.Int64("written", written),
			logger.Int64("planned", plan.Length))
		return fmt.Errorf("%w after %d of %d bytes", ErrClientGone, written, plan.Length)
	}

	metrics.StreamAborts.WithLabelValues("source").Inc()
	logger.Warn("stream source failed",
		logger.String("key", res.Key),
		logger.Int64("written", written),
		logger.Int64("planned", plan.Length),
		logger.ErrorField(err))
	return fmt.Errorf("failed to read %s: %w", res.Key, err)
}
