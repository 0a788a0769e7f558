package stream

import (
	"errors"
	"sync"
)

var (
	errPerIPLimit = errors.New("too many concurrent streams from this address")
	errTotalLimit = errors.New("stream capacity reached")
)

// streamLimiter hands out stream slots, capped per client address and in
// total. A slot is returned by calling the release func from acquire.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP < 1 {
		maxPerIP = DefaultMaxConcurrentPerIP
	}
	if maxTotal < 1 {
		maxTotal = DefaultMaxConcurrentTotal
	}
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire takes a slot for ip. The returned release is safe to call more than
// once; only the first call frees the slot.
func (l *streamLimiter) acquire(ip string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return nil, errTotalLimit
	case l.perIP[ip] >= l.maxPerIP:
		return nil, errPerIPLimit
	}
	l.perIP[ip]++
	l.total++

	var once sync.Once
	return func() { once.Do(func() { l.free(ip) }) }, nil
}

func (l *streamLimiter) free(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.perIP[ip]--; l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
}

// count returns the open streams for ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// active returns the open streams across all addresses.
func (l *streamLimiter) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
