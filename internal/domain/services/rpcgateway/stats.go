package rpcgateway

// Stats is a read-only diagnostic snapshot of the gateway
type Stats struct {
	QueueDepth      int     `json:"queue_depth"`
	CallsThisWindow int     `json:"calls_this_window"`
	MaxPerWindow    int     `json:"max_per_window"`
	TotalProcessed  uint64  `json:"total_processed"`
	TotalErrored    uint64  `json:"total_errored"`
	ErrorRate       float64 `json:"error_rate"`
}

// Stats returns the current counters. ErrorRate is errored/processed in [0,1].
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{
		QueueDepth:      g.queue.Len(),
		CallsThisWindow: g.windowCalls,
		MaxPerWindow:    g.cfg.MaxRequestsPerWindow,
		TotalProcessed:  g.processed,
		TotalErrored:    g.errored,
	}
	if g.processed > 0 {
		s.ErrorRate = float64(g.errored) / float64(g.processed)
	}
	return s
}

// ResetStats zeroes the processed and errored totals
func (g *Gateway) ResetStats() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.processed = 0
	g.errored = 0
}
