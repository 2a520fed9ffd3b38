// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lipmaa implements the skip-link arithmetic of the Bamboo log
// format. Entry n carries, besides its backlink to n-1, a link to Link(n);
// following these skip links reaches entry 1 in O(log n) hops. The anchor
// positions of the structure are the 3-ary tree sizes g(k) = (3^k - 1) / 2:
// 1, 4, 13, 40, 121, ...
package lipmaa

import "sort"

// Link returns the skip-link target of sequence number n. Entry 1 links to
// itself; for n where Link(n) == n-1 the skip link coincides with the
// backlink and is omitted from the encoded entry.
func Link(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	m, po3 := uint64(1), uint64(3)
	for m < n {
		po3 *= 3
		m = (po3 - 1) / 2
	}
	po3 /= 3
	if m != n {
		u := n
		for u != 0 {
			m = (po3 - 1) / 2
			po3 /= 3
			u %= m
		}
		if m != po3 {
			po3 = m
		}
	}
	return n - po3
}

// NextAnchor returns the smallest g(k) >= n.
func NextAnchor(n uint64) uint64 {
	g := uint64(1)
	for g < n {
		g = 3*g + 1
	}
	return g
}

// CertPool returns, in descending order, the sequence numbers whose entries
// certify entry n: the path from the next anchor down to n plus the path
// from n down to 1. Retaining exactly this set keeps n verifiable both from
// entry 1 and from any later log head.
func CertPool(n uint64) []uint64 {
	if n == 0 {
		return nil
	}
	seen := map[uint64]struct{}{}
	// Descend from the anchor to n, skipping wherever the skip link does
	// not overshoot the target.
	for m := NextAnchor(n); m > n; {
		seen[m] = struct{}{}
		if l := Link(m); l >= n {
			m = l
		} else {
			m--
		}
	}
	// Greedy skip-link path from n to 1.
	for m := n; ; m = Link(m) {
		seen[m] = struct{}{}
		if m == 1 {
			break
		}
	}
	pool := make([]uint64, 0, len(seen))
	for m := range seen {
		pool = append(pool, m)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i] > pool[j] })
	return pool
}
