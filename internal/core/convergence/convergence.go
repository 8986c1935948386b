// Package convergence consumes per-round rating snapshots and produces
// the four independent stability metrics plus the composite progress
// signal and portfolio-ready predicate. It is pure: no clock, no I/O;
// callers supply the ring-buffer history explicitly.
package convergence

import (
	"sort"

	"github.com/example/imagerank/internal/core/rating"
)

// Config carries the tunable constants the convergence metrics depend on.
type Config struct {
	TargetTopK        int
	MinExposures      int
	SigmaConfidentMax float64
	StabilityWindow   int
	TargetExposures   int
}

// Ranked is one entry in a top-K snapshot: just enough to compute
// stability swaps and boundary gap without re-deriving them from a full
// Record each time.
type Ranked struct {
	Digest string
	Mu     float64
	Sigma  float64
}

// Snapshot is one round's top-K ranking, as stored in AppState's
// top_k_history ring buffer.
type Snapshot struct {
	Round int
	TopK  []Ranked
}

// RankAll sorts records by mu desc, tie-broken by lower sigma then
// digest, and returns the full ranking — the basis for both the top-K
// snapshot and the boundary-gap metric, which needs the (K+1)-th entry.
func RankAll(records []rating.Record) []Ranked {
	sorted := append([]rating.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Mu != b.Mu {
			return a.Mu > b.Mu
		}
		if a.Sigma != b.Sigma {
			return a.Sigma < b.Sigma
		}
		return a.Digest < b.Digest
	})
	ranked := make([]Ranked, len(sorted))
	for i, r := range sorted {
		ranked[i] = Ranked{Digest: r.Digest, Mu: r.Mu, Sigma: r.Sigma}
	}
	return ranked
}

// Rank returns the top-K snapshot for a round — the per-round operation
// the Session Coordinator runs after every committed choice and appends
// to top_k_history.
func Rank(records []rating.Record, round int, k int) Snapshot {
	ranked := RankAll(records)
	if k > len(ranked) {
		k = len(ranked)
	}
	return Snapshot{Round: round, TopK: ranked[:k]}
}

// Report is the scalar progress signal plus the four independent
// metrics it is composed from, returned by Session Coordinator's
// progress() operation.
type Report struct {
	Progress       float64 // percent, [0,100]
	PortfolioReady bool
	Quality        string
	Coverage       float64
	Confidence     float64
	BoundaryGap    float64
	Stability      float64
}

// Coverage is the fraction of records with exposures >= minExposures.
func Coverage(records []rating.Record, minExposures int) float64 {
	if len(records) == 0 {
		return 0
	}
	covered := 0
	for _, r := range records {
		if r.Exposures >= minExposures {
			covered++
		}
	}
	return float64(covered) / float64(len(records))
}

// Confidence is the fraction of the top-K whose sigma is at or below
// sigmaConfidentMax.
func Confidence(topK []Ranked, sigmaConfidentMax float64) float64 {
	if len(topK) == 0 {
		return 0
	}
	confident := 0
	for _, r := range topK {
		if r.Sigma <= sigmaConfidentMax {
			confident++
		}
	}
	return float64(confident) / float64(len(topK))
}

func ci(mu, sigma float64) (lower, upper float64) {
	margin := 1.96 * sigma
	return mu - margin, mu + margin
}

// BoundaryGap compares the K-th image's lower confidence bound against
// the (K+1)-th image's upper bound, using the full ranking (not just the
// top-K snapshot, since the (K+1)-th entry lives just past it).
func BoundaryGap(rankedAll []Ranked, k int) float64 {
	if len(rankedAll) < k+1 || k <= 0 {
		return 0
	}
	kth := rankedAll[k-1]
	kPlus1 := rankedAll[k]
	kthLower, _ := ci(kth.Mu, kth.Sigma)
	_, kPlus1Upper := ci(kPlus1.Mu, kPlus1.Sigma)
	return kthLower - kPlus1Upper
}

// Stability measures rank churn in the top-K across the retained
// history: 1 - swaps/maxSwaps, where a swap is any digest entering or
// leaving the top-K set between consecutive snapshots.
func Stability(history []Snapshot, k int) float64 {
	if len(history) < 2 {
		return 0
	}

	swaps := 0
	maxSwaps := 0
	for i := 1; i < len(history); i++ {
		prev := topKSet(history[i-1].TopK)
		cur := topKSet(history[i].TopK)
		for d := range cur {
			if !prev[d] {
				swaps++
			}
		}
		for d := range prev {
			if !cur[d] {
				swaps++
			}
		}
		maxSwaps += 2 * k
	}
	if maxSwaps == 0 {
		return 0
	}
	s := 1 - float64(swaps)/float64(maxSwaps)
	if s < 0 {
		return 0
	}
	return s
}

func topKSet(topK []Ranked) map[string]bool {
	set := make(map[string]bool, len(topK))
	for _, r := range topK {
		set[r.Digest] = true
	}
	return set
}

// Evaluate computes the full Report for the current catalog state: the
// live records (for coverage/exposure), the full mu-ranking (for
// boundary gap), and the retained top-K history (for stability).
func Evaluate(records []rating.Record, rankedAll []Ranked, history []Snapshot, cfg Config) Report {
	if len(records) == 0 {
		return Report{Quality: qualityLabel(0)}
	}

	coverage := Coverage(records, cfg.MinExposures)

	topK := rankedAll
	if len(topK) > cfg.TargetTopK {
		topK = topK[:cfg.TargetTopK]
	}
	confidence := Confidence(topK, cfg.SigmaConfidentMax)
	boundaryGap := BoundaryGap(rankedAll, cfg.TargetTopK)
	stability := Stability(history, cfg.TargetTopK)

	meanExposures := meanExposures(records)
	exposureTerm := meanExposures / float64(cfg.TargetExposures)
	if exposureTerm > 1 {
		exposureTerm = 1
	}

	allZeroExposure := true
	for _, r := range records {
		if r.Exposures > 0 {
			allZeroExposure = false
			break
		}
	}

	progress := 0.0
	if !allZeroExposure {
		progress = 100 * (0.30*coverage + 0.25*exposureTerm + 0.25*confidence + 0.20*stability)
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	ready := coverage >= 0.95 && confidence >= 0.90 && boundaryGap > 0 && stability >= 0.95

	return Report{
		Progress:       progress,
		PortfolioReady: ready,
		Quality:        qualityLabel(progress),
		Coverage:       coverage,
		Confidence:     confidence,
		BoundaryGap:    boundaryGap,
		Stability:      stability,
	}
}

func meanExposures(records []rating.Record) float64 {
	total := 0
	for _, r := range records {
		total += r.Exposures
	}
	return float64(total) / float64(len(records))
}

// qualityLabel maps the composite progress percentage onto the
// spec's five-bucket quality label.
func qualityLabel(progress float64) string {
	switch {
	case progress >= 90:
		return "excellent"
	case progress >= 75:
		return "very good"
	case progress >= 50:
		return "good"
	case progress >= 25:
		return "fair"
	default:
		return "early"
	}
}
