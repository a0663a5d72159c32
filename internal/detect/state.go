package detect

import (
	"context"
	"sync"
	"time"
)

const (
	// WShort is the window for volumetric/scan/SYN-flood detectors.
	WShort = 10 * time.Second
	// WWeb is the window for web-attack (SQLi/XSS) detectors.
	WWeb = 60 * time.Second
)

// portWindow tracks arrival timestamps per destination port for the DDoS detector.
type portWindow struct {
	timestamps []time.Time
}

type portEvent struct {
	port int
	at   time.Time
}

// sourceState is the per-source-IP sliding window state, lazily created.
type sourceState struct {
	mu sync.Mutex

	requestsPerPort map[int]*portWindow
	portAccessLog   []portEvent

	synTimestamps []time.Time
	ackTimestamps []time.Time

	sqliHits []time.Time
	xssHits  []time.Time

	lastTouched time.Time
}

func newSourceState() *sourceState {
	return &sourceState{
		requestsPerPort: make(map[int]*portWindow),
		lastTouched:     time.Now(),
	}
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append([]time.Time(nil), ts[i:]...)
}

// RecordRequest appends an arrival timestamp for a port and returns the
// pruned window count for W_short.
func (s *sourceState) RecordRequest(port int, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now

	pw, ok := s.requestsPerPort[port]
	if !ok {
		pw = &portWindow{}
		s.requestsPerPort[port] = pw
	}
	pw.timestamps = append(pw.timestamps, now)
	pw.timestamps = pruneBefore(pw.timestamps, now.Add(-WShort))
	return len(pw.timestamps)
}

// ClearPort drops the window for a port after it has triggered an alert.
func (s *sourceState) ClearPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.requestsPerPort[port]; ok {
		pw.timestamps = pw.timestamps[:0]
	}
}

// RecordPort appends to the port-access log and returns (uniquePorts, total)
// over the pruned W_short window.
func (s *sourceState) RecordPort(port int, now time.Time) (unique, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now

	s.portAccessLog = append(s.portAccessLog, portEvent{port: port, at: now})
	cutoff := now.Add(-WShort)
	kept := s.portAccessLog[:0]
	seen := make(map[int]struct{})
	for _, e := range s.portAccessLog {
		if e.at.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
		seen[e.port] = struct{}{}
	}
	s.portAccessLog = kept
	return len(seen), len(kept)
}

// UniquePorts returns the set of unique ports currently in the window.
func (s *sourceState) UniquePorts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int]struct{})
	for _, e := range s.portAccessLog {
		seen[e.port] = struct{}{}
	}
	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	return ports
}

// ClearPortScan drops the port-access log after it has triggered an alert.
func (s *sourceState) ClearPortScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portAccessLog = s.portAccessLog[:0]
}

// RecordSYN appends a SYN timestamp and returns the pruned SYN count.
func (s *sourceState) RecordSYN(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now
	s.synTimestamps = pruneBefore(append(s.synTimestamps, now), now.Add(-WShort))
	return len(s.synTimestamps)
}

// RecordACK appends an ACK timestamp and returns the pruned ACK count.
func (s *sourceState) RecordACK(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now
	s.ackTimestamps = pruneBefore(append(s.ackTimestamps, now), now.Add(-WShort))
	return len(s.ackTimestamps)
}

// SYNACKCounts returns the current pruned SYN and ACK counts without recording.
func (s *sourceState) SYNACKCounts() (syn, ack int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.synTimestamps), len(s.ackTimestamps)
}

// ClearSYNFlood drops both SYN and ACK windows after a trigger.
func (s *sourceState) ClearSYNFlood() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synTimestamps = s.synTimestamps[:0]
	s.ackTimestamps = s.ackTimestamps[:0]
}

// RecordSQLiHit appends a hit timestamp and returns the pruned W_web count.
func (s *sourceState) RecordSQLiHit(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now
	s.sqliHits = pruneBefore(append(s.sqliHits, now), now.Add(-WWeb))
	return len(s.sqliHits)
}

// RecordXSSHit appends a hit timestamp and returns the pruned W_web count.
func (s *sourceState) RecordXSSHit(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = now
	s.xssHits = pruneBefore(append(s.xssHits, now), now.Add(-WWeb))
	return len(s.xssHits)
}

// PruneWeb re-prunes the SQLi/XSS windows without recording a new hit, and
// returns their counts. Used when a packet matches no pattern but we still
// want windows to decay.
func (s *sourceState) PruneWeb(now time.Time) (sqli, xss int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sqliHits = pruneBefore(s.sqliHits, now.Add(-WWeb))
	s.xssHits = pruneBefore(s.xssHits, now.Add(-WWeb))
	return len(s.sqliHits), len(s.xssHits)
}

// ClearSQLi drops the SQLi window after a trigger.
func (s *sourceState) ClearSQLi() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sqliHits = s.sqliHits[:0]
}

// ClearXSS drops the XSS window after a trigger.
func (s *sourceState) ClearXSS() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xssHits = s.xssHits[:0]
}

// Idle reports whether every window is empty and the state has not been
// touched since cutoff, making it eligible for eviction.
func (s *sourceState) Idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTouched.After(cutoff) {
		return false
	}
	for _, pw := range s.requestsPerPort {
		if len(pw.timestamps) > 0 {
			return false
		}
	}
	return len(s.portAccessLog) == 0 &&
		len(s.synTimestamps) == 0 && len(s.ackTimestamps) == 0 &&
		len(s.sqliHits) == 0 && len(s.xssHits) == 0
}

// Table is the top-level ip -> sourceState map, backed by sync.Map for
// per-key locking without a single global mutex.
type Table struct {
	states sync.Map // string -> *sourceState
}

// NewTable creates an empty Detector State table.
func NewTable() *Table {
	return &Table{}
}

// GetOrCreate returns the handle for ip, creating it lazily on first access.
func (t *Table) GetOrCreate(ip string) *sourceState {
	if v, ok := t.states.Load(ip); ok {
		return v.(*sourceState)
	}
	v, _ := t.states.LoadOrStore(ip, newSourceState())
	return v.(*sourceState)
}

// Sweep evicts entries whose windows are all empty and untouched since cutoff.
func (t *Table) Sweep(cutoff time.Time) int {
	evicted := 0
	t.states.Range(func(key, value any) bool {
		st := value.(*sourceState)
		if st.Idle(cutoff) {
			t.states.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// SweepTask is a suture.Service that periodically evicts idle Detector State entries.
type SweepTask struct {
	Table    *Table
	Interval time.Duration
}

// Serve implements suture.Service. It blocks until ctx is canceled.
func (t *SweepTask) Serve(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = WWeb
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			t.Table.Sweep(now.Add(-interval))
		}
	}
}
