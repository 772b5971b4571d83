package pool

// Stats is a point-in-time view of a pool.
type Stats struct {
	Node           string `json:"node"`
	Active         bool   `json:"active"`
	Idle           int    `json:"idle"`
	CheckedOut     int    `json:"checked_out"`
	Opening        int    `json:"opening"`
	Waiters        int    `json:"waiters"`
	MinConnections int    `json:"min_connections"`
	MaxConnections int    `json:"max_connections"`

	Acquires        uint64 `json:"acquires"`
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	Timeouts        uint64 `json:"timeouts"`
	Discarded       uint64 `json:"discarded"`
	Releases        uint64 `json:"releases"`
	UnknownReleases uint64 `json:"unknown_releases"`
	Opened          uint64 `json:"opened"`
	OpenFailures    uint64 `json:"open_failures"`
}

// HitRate returns the share of successful acquires served from the idle
// set.
func (s Stats) HitRate() float64 {
	served := s.Hits + s.Misses
	if served == 0 {
		return 0
	}
	return float64(s.Hits) / float64(served)
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Node:           p.cfg.Name,
		Active:         !p.closed,
		Idle:           len(p.idle),
		CheckedOut:     len(p.active),
		Opening:        p.opening + p.refills,
		Waiters:        p.waiters,
		MinConnections: p.cfg.MinConnections,
		MaxConnections: p.cfg.MaxConnections,
	}
	p.mu.Unlock()

	s.Acquires = p.stats.acquires.Load()
	s.Hits = p.stats.hits.Load()
	s.Misses = p.stats.misses.Load()
	s.Timeouts = p.stats.timeouts.Load()
	s.Discarded = p.stats.discarded.Load()
	s.Releases = p.stats.releases.Load()
	s.UnknownReleases = p.stats.unknownReleases.Load()
	s.Opened = p.stats.opened.Load()
	s.OpenFailures = p.stats.openFailures.Load()
	return s
}
