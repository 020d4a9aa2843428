package common

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestUtilsKeyValues(t *testing.T) {

	m := GetKeyValues("tag1=value1,,tag2, tag3 = value3 ,=skip")
	if len(m) != 3 {
		t.Fatalf("Wrong key values count: %d", len(m))
	}
	if m["tag1"] != "value1" {
		t.Fatal("Wrong tag1 value")
	}
	if v, ok := m["tag2"]; !ok || v != "" {
		t.Fatal("Wrong tag2 value")
	}
	if m["tag3"] != "value3" {
		t.Fatal("Wrong tag3 value")
	}
}

func TestUtilsSanitizeName(t *testing.T) {

	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"proflog", "osd", "op_latency"}, "proflog_osd_op_latency"},
		{[]string{"", "osd", "ops"}, "osd_ops"},
		{[]string{"osd.0", "op-w"}, "osd_0_op_w"},
		{[]string{"0set", "x"}, "_set_x"},
		{[]string{"ns:sub", "x"}, "ns:sub_x"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.parts...); got != tt.want {
			t.Fatalf("SanitizeName(%v) = %s, expected %s", tt.parts, got, tt.want)
		}
	}
}

func TestUtilsGuid(t *testing.T) {

	a := GetGuid()
	b := GetGuid()
	if IsEmpty(a) || a == b {
		t.Fatal("Wrong guid")
	}
}

type testSource struct {
	samples []Sample
}

func (ts *testSource) Samples() []Sample {
	return ts.samples
}

type testPublisher struct {
	mu      sync.Mutex
	batches int
	last    []Sample
	stopped bool
}

func (tp *testPublisher) Publish(samples []Sample) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.batches++
	tp.last = samples
}

func (tp *testPublisher) Stop() {
	tp.stopped = true
}

func TestPublishersRun(t *testing.T) {

	source := &testSource{samples: []Sample{
		{Set: "osd", Name: "ops", Kind: SampleKindInt, Int: 7},
		{Set: "osd", Name: "lat", Kind: SampleKindFloat, Float: 1.5, Tracked: true, Count: 3},
	}}

	p := &testPublisher{}
	publishers := NewPublishers()
	publishers.Register(p)
	publishers.Register(nil)
	if publishers.Len() != 1 {
		t.Fatal("Nil publisher registered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	publishers.Run(ctx, source, 20*time.Millisecond)
	publishers.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.batches < 2 {
		t.Fatalf("Too few batches: %d", p.batches)
	}
	if len(p.last) != 2 || p.last[0].Value() != 7 || p.last[1].Value() != 1.5 {
		t.Fatalf("Wrong samples: %+v", p.last)
	}
	if !p.stopped {
		t.Fatal("Publisher is not stopped")
	}
}

func TestLogsEmpty(t *testing.T) {

	logs := NewLogs()
	if !logs.Empty() {
		t.Fatal("Logs are not empty")
	}
	logs.Info("nothing %d", 1).Warn("nothing").Error("nothing").Debug("nothing")
}
