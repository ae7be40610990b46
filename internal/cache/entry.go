package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"
)

// frequencyCap bounds the adaptive TTL multiplier.
const frequencyCap = 3.0

// ageEpsilonHours keeps the recency factor finite for brand-new entries.
const ageEpsilonHours = 1e-3

// entry is one cached embedding. Exactly one of vec/compressed is set,
// depending on whether the cache compresses on write.
type entry struct {
	vec         []float32
	compressed  []byte
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
	ttl         time.Duration // current adaptive TTL
	priority    float64       // caller-supplied weight, default 1
	size        int           // stored bytes
	source       string
	contentHash  string
	semanticHash string
}

// expired reports whether the entry has outlived its current TTL.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// ageSeconds returns the entry age, floored at 1s for rate computations.
func (e *entry) ageSeconds(now time.Time) float64 {
	return math.Max(now.Sub(e.createdAt).Seconds(), 1)
}

// accessesPerSecond is the observed reuse rate.
func (e *entry) accessesPerSecond(now time.Time) float64 {
	return float64(e.accessCount) / e.ageSeconds(now)
}

// adaptiveTTL recomputes the entry lease from its reuse rate:
// ttl = clamp(base * min(log(aps+1)+1, cap), min, max). Frequently reused
// entries earn a longer lease without a background refresh.
func adaptiveTTL(base, minTTL, maxTTL time.Duration, aps float64) time.Duration {
	mult := math.Min(math.Log(aps+1)+1, frequencyCap)
	ttl := time.Duration(float64(base) * mult)
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}

// priorityScore orders entries for the priority/adaptive eviction policy.
// Lowest score is evicted first.
func (e *entry) priorityScore(now time.Time) float64 {
	ageHours := math.Max(now.Sub(e.createdAt).Hours(), ageEpsilonHours)
	recency := 1 / ageHours
	frequency := math.Log(e.accessesPerSecond(now) + 1)
	return recency * frequency * e.priority
}

// contentHash fingerprints the exact vector bytes.
func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:8])
}

// semanticHash is a coarse sign-bucket fingerprint of the vector, kept for
// diagnostics only. It is never used for lookup.
func semanticHash(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec))
	for _, v := range vec {
		if v >= 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:4])
}
