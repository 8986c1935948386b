package convergence

import (
	"testing"

	"github.com/example/imagerank/internal/core/rating"
)

func defaultConfig() Config {
	return Config{
		TargetTopK:        40,
		MinExposures:      5,
		SigmaConfidentMax: 90,
		StabilityWindow:   120,
		TargetExposures:   10,
	}
}

func rec(digest string, mu, sigma float64, exposures int) rating.Record {
	return rating.Record{Digest: digest, Mu: mu, Sigma: sigma, Exposures: exposures}
}

// Scenario 5 from spec §8: empty catalog reports all-zero.
func TestEvaluate_EmptyCatalog(t *testing.T) {
	report := Evaluate(nil, nil, nil, defaultConfig())
	if report.Progress != 0 {
		t.Errorf("Progress = %v, want 0", report.Progress)
	}
	if report.PortfolioReady {
		t.Errorf("PortfolioReady = true, want false")
	}
	if report.Quality != "early" {
		t.Errorf("Quality = %q, want \"early\"", report.Quality)
	}
}

// Open question from spec §4.4/§9: progress must be 0, not ~40, when
// every image has zero exposures.
func TestEvaluate_AllZeroExposuresIsZeroProgress(t *testing.T) {
	records := []rating.Record{rec("a", 1500, 350, 0), rec("b", 1500, 350, 0)}
	report := Evaluate(records, RankAll(records), nil, defaultConfig())
	if report.Progress != 0 {
		t.Errorf("Progress = %v, want 0 for all-zero-exposure catalog", report.Progress)
	}
}

func TestCoverage_FractionAboveThreshold(t *testing.T) {
	records := []rating.Record{
		rec("a", 1500, 350, 5),
		rec("b", 1500, 350, 2),
		rec("c", 1500, 350, 10),
		rec("d", 1500, 350, 0),
	}
	if c := Coverage(records, 5); c != 0.5 {
		t.Errorf("Coverage = %v, want 0.5", c)
	}
}

func TestConfidence_FractionBelowSigmaThreshold(t *testing.T) {
	topK := []Ranked{
		{Digest: "a", Sigma: 80},
		{Digest: "b", Sigma: 95},
		{Digest: "c", Sigma: 60},
	}
	if c := Confidence(topK, 90); c != 2.0/3.0 {
		t.Errorf("Confidence = %v, want 0.6667", c)
	}
}

func TestBoundaryGap_PositiveWhenClean(t *testing.T) {
	ranked := []Ranked{
		{Digest: "a", Mu: 2000, Sigma: 10},
		{Digest: "b", Mu: 1000, Sigma: 10},
	}
	gap := BoundaryGap(ranked, 1)
	if gap <= 0 {
		t.Errorf("BoundaryGap = %v, want > 0 for well-separated ranks", gap)
	}
}

func TestBoundaryGap_NegativeWhenContested(t *testing.T) {
	ranked := []Ranked{
		{Digest: "a", Mu: 1501, Sigma: 300},
		{Digest: "b", Mu: 1500, Sigma: 300},
	}
	gap := BoundaryGap(ranked, 1)
	if gap >= 0 {
		t.Errorf("BoundaryGap = %v, want < 0 for overlapping confidence intervals", gap)
	}
}

func TestStability_IdenticalSnapshotsAreFullyStable(t *testing.T) {
	snap := Snapshot{Round: 1, TopK: []Ranked{{Digest: "a"}, {Digest: "b"}}}
	history := []Snapshot{snap, snap, snap}
	if s := Stability(history, 2); s != 1 {
		t.Errorf("Stability = %v, want 1 for identical snapshots", s)
	}
}

func TestStability_FullChurnIsZero(t *testing.T) {
	history := []Snapshot{
		{Round: 1, TopK: []Ranked{{Digest: "a"}, {Digest: "b"}}},
		{Round: 2, TopK: []Ranked{{Digest: "c"}, {Digest: "d"}}},
	}
	if s := Stability(history, 2); s != 0 {
		t.Errorf("Stability = %v, want 0 for complete churn", s)
	}
}

func TestRankAll_OrdersByMuThenSigmaThenDigest(t *testing.T) {
	records := []rating.Record{
		rec("z", 1600, 100, 1),
		rec("a", 1600, 100, 1),
		rec("m", 1700, 50, 1),
	}
	ranked := RankAll(records)
	want := []string{"m", "a", "z"}
	for i, d := range want {
		if ranked[i].Digest != d {
			t.Fatalf("ranked[%d].Digest = %q, want %q", i, ranked[i].Digest, d)
		}
	}
}

func TestQualityLabel_Buckets(t *testing.T) {
	cases := []struct {
		progress float64
		want     string
	}{
		{95, "excellent"},
		{80, "very good"},
		{60, "good"},
		{30, "fair"},
		{10, "early"},
	}
	for _, c := range cases {
		if got := qualityLabel(c.progress); got != c.want {
			t.Errorf("qualityLabel(%v) = %q, want %q", c.progress, got, c.want)
		}
	}
}
