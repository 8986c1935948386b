// Package pairing is the pure decision core that picks the next pair of
// images to show a human judge. It classifies the catalog into pools,
// applies recency suppression, and runs the six-step selection policy.
// Nothing here performs I/O: callers supply the current posteriors,
// recency buffers, and a source of randomness.
package pairing

import (
	"sort"

	"github.com/example/imagerank/internal/core/rating"
)

// Pool is one of the four eligibility classes a record falls into for a
// given round.
type Pool int

const (
	PoolUnseen Pool = iota
	PoolActive
	PoolSkippedEligible
	PoolSkippedCooldown
)

// Classify returns the pool a record belongs to at currentRound.
func Classify(r rating.Record, currentRound int) Pool {
	switch {
	case r.Exposures == 0:
		return PoolUnseen
	case r.NextEligibleRound > currentRound:
		return PoolSkippedCooldown
	case r.NextEligibleRound > 0 && r.Skips > 0:
		return PoolSkippedEligible
	default:
		return PoolActive
	}
}

// ErrorKind tags a PairingError the way §7's abstract error taxonomy
// requires: a stable machine-readable category, not a free-form string.
type ErrorKind string

const (
	// ErrNotEnoughImages means fewer than two eligible images remain
	// after recency suppression (or in the catalog at all).
	ErrNotEnoughImages ErrorKind = "NotEnoughImages"
)

// PairingError is the tagged-variant error type the pairing engine
// returns; callers switch on Kind rather than matching message text.
type PairingError struct {
	Kind    ErrorKind
	Message string
}

func (e *PairingError) Error() string { return e.Message }

func notEnoughImages(msg string) *PairingError {
	return &PairingError{Kind: ErrNotEnoughImages, Message: msg}
}

// Pair is the selected pair of digests for a round.
type Pair struct {
	Left  string
	Right string
}

// Config carries the tunable constants the selection policy depends on.
type Config struct {
	EpsilonGreedy         float64
	SkipInjectProbability float64
	RecentImagesWindow    int
	RecentPairsWindow     int
	ShortlistK            int
	InfoGapAlpha          float64
}

// Rand is the minimal randomness surface the policy needs, so callers
// can inject a seeded source for deterministic tests.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// unorderedPair is a suppression key independent of slot order.
type unorderedPair struct {
	A, B string
}

func normalizedPair(a, b string) unorderedPair {
	if a <= b {
		return unorderedPair{a, b}
	}
	return unorderedPair{b, a}
}

// Select runs the six-step selection policy against records (the
// current posteriors for every catalog-present digest), the recency
// buffers, and the current round. recentImages and recentPairs are
// passed as slices (most-recent-last, matching the AppState FIFO); rng
// drives the policy's probabilistic steps.
func Select(records []rating.Record, currentRound int, recentImages []string, recentPairs []Pair, cfg Config, rng Rand) (Pair, *PairingError) {
	byDigest := make(map[string]rating.Record, len(records))
	for _, r := range records {
		byDigest[r.Digest] = r
	}

	suppressedImages := map[string]bool{}
	for _, d := range recentImages {
		suppressedImages[d] = true
	}
	suppressedPairs := map[unorderedPair]bool{}
	for _, p := range recentPairs {
		suppressedPairs[normalizedPair(p.Left, p.Right)] = true
	}

	pair, err := selectWithSuppression(byDigest, currentRound, suppressedImages, suppressedPairs, cfg, rng)
	if err == nil {
		return pair, nil
	}

	// Failure semantics (§4.3): relax pair-recency first, then
	// image-recency, before giving up.
	pair, err = selectWithSuppression(byDigest, currentRound, suppressedImages, nil, cfg, rng)
	if err == nil {
		return pair, nil
	}

	pair, err = selectWithSuppression(byDigest, currentRound, nil, nil, cfg, rng)
	if err == nil {
		return pair, nil
	}

	return Pair{}, notEnoughImages("fewer than two eligible images remain after relaxing recency filters")
}

func selectWithSuppression(byDigest map[string]rating.Record, currentRound int, suppressedImages map[string]bool, suppressedPairs map[unorderedPair]bool, cfg Config, rng Rand) (Pair, *PairingError) {
	var unseen, active, skippedEligible []rating.Record
	eligibleCount := 0

	for digest, r := range byDigest {
		if suppressedImages[digest] {
			continue
		}
		switch Classify(r, currentRound) {
		case PoolUnseen:
			unseen = append(unseen, r)
			eligibleCount++
		case PoolActive:
			active = append(active, r)
			eligibleCount++
		case PoolSkippedEligible:
			skippedEligible = append(skippedEligible, r)
			eligibleCount++
		case PoolSkippedCooldown:
			// excluded from selection
		}
	}

	if eligibleCount < 2 {
		return Pair{}, notEnoughImages("fewer than two eligible images in the catalog")
	}

	eligible := make([]rating.Record, 0, eligibleCount)
	eligible = append(eligible, unseen...)
	eligible = append(eligible, active...)
	eligible = append(eligible, skippedEligible...)

	slotA, remaining := pickSlotA(unseen, active, skippedEligible, eligible, cfg, rng)
	if slotA == "" {
		return Pair{}, notEnoughImages("no candidate for slot A")
	}

	slotB := pickSlotB(slotA, remaining, active, byDigest, cfg, rng, suppressedPairs)
	if slotB == "" {
		return Pair{}, notEnoughImages("no candidate for slot B")
	}

	return Pair{Left: slotA, Right: slotB}, nil
}

// pickSlotA implements selection-policy steps (2) and (3): skip
// resurfacing takes priority, then UNSEEN priority, then
// sigma-weighted ACTIVE selection. It returns the chosen digest and the
// remaining eligible pool (slotA excluded) for step (4)/(5) to draw
// slot B from.
func pickSlotA(unseen, active, skippedEligible, eligible []rating.Record, cfg Config, rng Rand) (string, []rating.Record) {
	// Step 2: skip-resurfacing injection.
	if len(skippedEligible) > 0 && rng.Float64() < cfg.SkipInjectProbability {
		chosen := skippedEligible[rng.Intn(len(skippedEligible))]
		return chosen.Digest, without(eligible, chosen.Digest)
	}

	// Step 3: UNSEEN priority, else sigma-weighted ACTIVE.
	if len(unseen) > 0 {
		chosen := unseen[rng.Intn(len(unseen))]
		return chosen.Digest, without(eligible, chosen.Digest)
	}

	if len(active) > 0 {
		chosen := weightedBySigma(active, rng)
		return chosen.Digest, without(eligible, chosen.Digest)
	}

	// Only skip-eligible images remain; pick among them uniformly.
	if len(skippedEligible) > 0 {
		chosen := skippedEligible[rng.Intn(len(skippedEligible))]
		return chosen.Digest, without(eligible, chosen.Digest)
	}

	return "", nil
}

// pickSlotB implements selection-policy steps (4)-(6): epsilon-greedy
// exploration, the information-theoretic shortlist, and the UNSEEN+ACTIVE
// calibration special case. slotA has already been removed from
// remaining.
func pickSlotB(slotA string, remaining []rating.Record, active []rating.Record, byDigest map[string]rating.Record, cfg Config, rng Rand, suppressedPairs map[unorderedPair]bool) string {
	candidates := remaining
	if suppressedPairs != nil {
		candidates = filterSuppressedPairs(slotA, remaining, suppressedPairs)
		if len(candidates) == 0 {
			candidates = remaining
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	// Step 6: calibration special case, only when slot A came from
	// UNSEEN and an ACTIVE pool exists.
	slotARecord, ok := byDigest[slotA]
	if ok && slotARecord.Exposures == 0 && len(active) > 0 {
		if b := calibrationPartner(slotA, active, suppressedPairs); b != "" {
			return b
		}
	}

	// Step 4: epsilon-greedy exploration.
	if rng.Float64() < cfg.EpsilonGreedy {
		return candidates[rng.Intn(len(candidates))].Digest
	}

	// Step 5: information-theoretic partner from the high-sigma shortlist.
	return infoTheoreticPartner(slotA, byDigest[slotA].Mu, candidates, cfg)
}

// calibrationPartner picks an ACTIVE image near the median mu with sigma
// in the top tercile of the ACTIVE pool, per step (6).
func calibrationPartner(slotA string, active []rating.Record, suppressedPairs map[unorderedPair]bool) string {
	pool := make([]rating.Record, 0, len(active))
	for _, r := range active {
		if r.Digest == slotA {
			continue
		}
		if suppressedPairs != nil && suppressedPairs[normalizedPair(slotA, r.Digest)] {
			continue
		}
		pool = append(pool, r)
	}
	if len(pool) == 0 {
		return ""
	}

	byMu := append([]rating.Record(nil), pool...)
	sort.Slice(byMu, func(i, j int) bool { return byMu[i].Mu < byMu[j].Mu })
	medianMu := byMu[len(byMu)/2].Mu

	bySigma := append([]rating.Record(nil), pool...)
	sort.Slice(bySigma, func(i, j int) bool { return bySigma[i].Sigma < bySigma[j].Sigma })
	tercileStart := (2 * len(bySigma)) / 3
	topTercile := make(map[string]bool, len(bySigma)-tercileStart)
	for _, r := range bySigma[tercileStart:] {
		topTercile[r.Digest] = true
	}

	var best rating.Record
	bestGap := -1.0
	found := false
	for _, r := range pool {
		if !topTercile[r.Digest] {
			continue
		}
		gap := absFloat(r.Mu - medianMu)
		if !found || gap < bestGap || (gap == bestGap && tieBreak(r, best)) {
			best, bestGap, found = r, gap, true
		}
	}
	if !found {
		return ""
	}
	return best.Digest
}

// infoTheoreticPartner implements step (5): shortlist the K
// highest-sigma candidates, score by sigma minus a rating-gap penalty,
// and break ties deterministically.
func infoTheoreticPartner(slotA string, muA float64, candidates []rating.Record, cfg Config) string {
	pool := make([]rating.Record, 0, len(candidates))
	for _, r := range candidates {
		if r.Digest != slotA {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		return ""
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].Sigma > pool[j].Sigma })
	k := cfg.ShortlistK
	if k <= 0 || k > len(pool) {
		k = len(pool)
	}
	shortlist := pool[:k]

	var best rating.Record
	bestScore := 0.0
	found := false
	for _, r := range shortlist {
		score := r.Sigma - cfg.InfoGapAlpha*absFloat(r.Mu-muA)
		if !found || score > bestScore || (score == bestScore && tieBreak(r, best)) {
			best, bestScore, found = r, score, true
		}
	}
	if !found {
		return ""
	}
	return best.Digest
}

// tieBreak reports whether candidate should replace current under the
// deterministic tie-break: lower exposures, then lower digest
// lexicographically.
func tieBreak(candidate, current rating.Record) bool {
	if candidate.Exposures != current.Exposures {
		return candidate.Exposures < current.Exposures
	}
	return candidate.Digest < current.Digest
}

func weightedBySigma(active []rating.Record, rng Rand) rating.Record {
	total := 0.0
	for _, r := range active {
		total += r.Sigma
	}
	if total <= 0 {
		return active[rng.Intn(len(active))]
	}
	target := rng.Float64() * total
	acc := 0.0
	for _, r := range active {
		acc += r.Sigma
		if target <= acc {
			return r
		}
	}
	return active[len(active)-1]
}

func without(records []rating.Record, digest string) []rating.Record {
	out := make([]rating.Record, 0, len(records))
	for _, r := range records {
		if r.Digest != digest {
			out = append(out, r)
		}
	}
	return out
}

func filterSuppressedPairs(slotA string, candidates []rating.Record, suppressedPairs map[unorderedPair]bool) []rating.Record {
	out := make([]rating.Record, 0, len(candidates))
	for _, r := range candidates {
		if !suppressedPairs[normalizedPair(slotA, r.Digest)] {
			out = append(out, r)
		}
	}
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
