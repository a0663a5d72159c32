package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceStateWindowPruning(t *testing.T) {
	st := newSourceState()
	base := time.Now()

	st.RecordRequest(80, base)
	count := st.RecordRequest(80, base.Add(WShort+time.Second))
	assert.Equal(t, 1, count, "entries outside the window must be pruned")
}

func TestSourceStateClearAfterTrigger(t *testing.T) {
	st := newSourceState()
	now := time.Now()
	st.RecordRequest(80, now)
	st.ClearPort(80)
	count := st.RecordRequest(80, now)
	assert.Equal(t, 1, count)
}

func TestTableGetOrCreateIsStable(t *testing.T) {
	tbl := NewTable()
	a := tbl.GetOrCreate("1.2.3.4")
	b := tbl.GetOrCreate("1.2.3.4")
	assert.Same(t, a, b)
}

func TestTableSweepEvictsIdleEntries(t *testing.T) {
	tbl := NewTable()
	st := tbl.GetOrCreate("1.2.3.4")
	st.RecordRequest(80, time.Now().Add(-time.Hour))
	st.ClearPort(80)

	evicted := tbl.Sweep(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, evicted)
}

func TestTableSweepKeepsActiveEntries(t *testing.T) {
	tbl := NewTable()
	tbl.GetOrCreate("1.2.3.4").RecordRequest(80, time.Now())
	evicted := tbl.Sweep(time.Now().Add(-time.Minute))
	assert.Equal(t, 0, evicted)
}

func TestSweepTaskStopsOnContextCancel(t *testing.T) {
	task := &SweepTask{Table: NewTable(), Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Serve(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("SweepTask did not stop after context cancel")
	}
}
