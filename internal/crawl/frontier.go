package crawl

// Target is one unit of pending work: a URL plus the depth at which it
// was first discovered. A target lives only inside the frontier's pending
// queue and is consumed exactly once.
type Target struct {
	URL   string
	Depth int
}

// Frontier owns the visit state machine for a single crawl invocation:
// the FIFO pending queue, the visited set, and the URL→depth map. The
// pending queue and the visited set stay disjoint; membership in the
// visited set is the sole cycle-prevention mechanism.
//
// Depth is memoized when a URL is first enqueued and never revised. A URL
// rediscovered on a different path keeps its original depth, so an
// over-depth discard stays over-depth on re-enqueue.
type Frontier struct {
	pending []Target
	queued  map[string]struct{}
	visited map[string]struct{}
	depths  map[string]int
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		depths:  make(map[string]int),
	}
}

// Push enqueues url unless it is already pending or visited, and reports
// whether it was accepted. The first Push fixes the url's depth for the
// lifetime of the frontier.
func (f *Frontier) Push(url string, depth int) bool {
	if url == "" {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if memoized, ok := f.depths[url]; ok {
		depth = memoized
	} else {
		f.depths[url] = depth
	}
	f.queued[url] = struct{}{}
	f.pending = append(f.pending, Target{URL: url, Depth: depth})
	return true
}

// Pop dequeues the oldest pending target in seeding order.
func (f *Frontier) Pop() (Target, bool) {
	if len(f.pending) == 0 {
		return Target{}, false
	}
	target := f.pending[0]
	f.pending = f.pending[1:]
	delete(f.queued, target.URL)
	return target, true
}

// MarkVisited records url as processed; it can never be enqueued again.
func (f *Frontier) MarkVisited(url string) {
	f.visited[url] = struct{}{}
}

// Visited reports whether url has already been processed.
func (f *Frontier) Visited(url string) bool {
	_, ok := f.visited[url]
	return ok
}

// Len returns the number of pending targets.
func (f *Frontier) Len() int {
	return len(f.pending)
}

// Depth returns the memoized discovery depth for url.
func (f *Frontier) Depth(url string) (int, bool) {
	depth, ok := f.depths[url]
	return depth, ok
}
