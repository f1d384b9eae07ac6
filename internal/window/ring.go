package window

import "solana-token-engine/internal/domain"

// ring is a fixed-capacity FIFO of snapshots ordered by observed_at.
// Pushing into a full ring evicts the oldest entry.
type ring struct {
	buf   []*domain.TokenSnapshot
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]*domain.TokenSnapshot, capacity)}
}

func (r *ring) len() int { return r.n }

// at returns the i-th oldest entry.
func (r *ring) at(i int) *domain.TokenSnapshot {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *ring) oldest() *domain.TokenSnapshot {
	if r.n == 0 {
		return nil
	}
	return r.at(0)
}

func (r *ring) newest() *domain.TokenSnapshot {
	if r.n == 0 {
		return nil
	}
	return r.at(r.n - 1)
}

func (r *ring) push(s *domain.TokenSnapshot) {
	if r.n == len(r.buf) {
		r.buf[r.start] = nil
		r.start = (r.start + 1) % len(r.buf)
		r.n--
	}
	r.buf[(r.start+r.n)%len(r.buf)] = s
	r.n++
}

// dropBefore evicts entries observed strictly before cutoff.
func (r *ring) dropBefore(cutoff int64) int {
	dropped := 0
	for r.n > 0 && r.at(0).ObservedAt < cutoff {
		r.buf[r.start] = nil
		r.start = (r.start + 1) % len(r.buf)
		r.n--
		dropped++
	}
	return dropped
}

func (r *ring) clear() {
	for i := range r.buf {
		r.buf[i] = nil
	}
	r.start, r.n = 0, 0
}

// latestAtOrBefore returns the index of the newest entry with observed_at <= ts, or -1.
func (r *ring) latestAtOrBefore(ts int64) int {
	lo, hi := 0, r.n-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if r.at(mid).ObservedAt <= ts {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return idx
}
