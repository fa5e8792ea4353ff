package bot

import "sync/atomic"

// Metrics counts pipeline outcomes across the process lifetime. All fields
// are updated atomically from concurrent candidate workers.
type Metrics struct {
	Cycles         atomic.Int64
	ProfilesSeen   atomic.Int64
	UntrackedChain atomic.Int64
	DedupHits      atomic.Int64
	FetchFailures  atomic.Int64
	Stale          atomic.Int64
	Filtered       atomic.Int64
	Notified       atomic.Int64
	NotifyFailures atomic.Int64
	Conflicts      atomic.Int64
}

// Snapshot is a point-in-time copy of the counters for logging.
type Snapshot struct {
	Cycles         int64 `json:"cycles"`
	ProfilesSeen   int64 `json:"profiles_seen"`
	UntrackedChain int64 `json:"untracked_chain"`
	DedupHits      int64 `json:"dedup_hits"`
	FetchFailures  int64 `json:"fetch_failures"`
	Stale          int64 `json:"stale"`
	Filtered       int64 `json:"filtered"`
	Notified       int64 `json:"notified"`
	NotifyFailures int64 `json:"notify_failures"`
	Conflicts      int64 `json:"conflicts"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Cycles:         m.Cycles.Load(),
		ProfilesSeen:   m.ProfilesSeen.Load(),
		UntrackedChain: m.UntrackedChain.Load(),
		DedupHits:      m.DedupHits.Load(),
		FetchFailures:  m.FetchFailures.Load(),
		Stale:          m.Stale.Load(),
		Filtered:       m.Filtered.Load(),
		Notified:       m.Notified.Load(),
		NotifyFailures: m.NotifyFailures.Load(),
		Conflicts:      m.Conflicts.Load(),
	}
}
