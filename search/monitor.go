package search

// SearchMonitor provides hooks to observe a directory search.
// Implementations must be safe for concurrent use: Scanned is called from
// pool workers.
type SearchMonitor interface {
	Start(dir string, fragments []string)
	Scanned(path string, result *ScanResult, err error)
	Finish(hits []*Hit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []string)                {}
func (n *noopMonitor) Scanned(_ string, _ *ScanResult, _ error) {}
func (n *noopMonitor) Finish(_ []*Hit)                           {}
