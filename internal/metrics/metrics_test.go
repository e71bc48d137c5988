package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStream(t *testing.T) {
	before206 := testutil.ToFloat64(StreamResponses.WithLabelValues("206"))
	beforeBytes := testutil.ToFloat64(StreamBytesServed)

	RecordStream(206, 100)
	RecordStream(206, 0)

	if got := testutil.ToFloat64(StreamResponses.WithLabelValues("206")) - before206; got != 2 {
		t.Errorf("expected 2 new 206 responses, got %v", got)
	}
	if got := testutil.ToFloat64(StreamBytesServed) - beforeBytes; got != 100 {
		t.Errorf("expected 100 new bytes, got %v", got)
	}
}

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(LibraryMutations.WithLabelValues("song.delete", "forbidden"))
	RecordMutation("song.delete", "forbidden")
	if got := testutil.ToFloat64(LibraryMutations.WithLabelValues("song.delete", "forbidden")) - before; got != 1 {
		t.Errorf("expected one recorded mutation, got %v", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/media/:id", 200, 15*time.Millisecond)
	if n := testutil.CollectAndCount(APIRequestDuration); n == 0 {
		t.Error("expected histogram series to be collected")
	}
}
