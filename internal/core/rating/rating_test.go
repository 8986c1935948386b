package rating

import "testing"

func defaultConfig() Config {
	return Config{
		SigmaMin:       60,
		SigmaDecay:     0.97,
		KFactorBase:    24,
		KFactorMin:     8,
		KFactorMax:     48,
		SkipCooldownLo: 11,
		SkipCooldownHi: 49,
	}
}

func almostEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestExpectedScore_EqualRatings(t *testing.T) {
	if e := ExpectedScore(1500, 1500); !almostEqual(e, 0.5, 1e-9) {
		t.Fatalf("ExpectedScore(1500,1500) = %v, want 0.5", e)
	}
}

func TestKFactor_ClampsToBounds(t *testing.T) {
	c := defaultConfig()
	if k := c.KFactor(350); !almostEqual(k, 24, 1e-9) {
		t.Fatalf("KFactor(350) = %v, want 24", k)
	}
	if k := c.KFactor(10); k != c.KFactorMin {
		t.Fatalf("KFactor(10) = %v, want floor %v", k, c.KFactorMin)
	}
	if k := c.KFactor(1000); k != c.KFactorMax {
		t.Fatalf("KFactor(1000) = %v, want ceiling %v", k, c.KFactorMax)
	}
}

// Scenario 1 from spec §8: two fresh images, LEFT wins.
func TestApplyDecision_BasicUpdate(t *testing.T) {
	c := defaultConfig()
	update := c.ApplyDecision(Posterior{Mu: 1500, Sigma: 350}, Posterior{Mu: 1500, Sigma: 350})

	if !almostEqual(update.Winner.Mu, 1512, 1e-6) {
		t.Errorf("winner.Mu = %v, want 1512", update.Winner.Mu)
	}
	if !almostEqual(update.Loser.Mu, 1488, 1e-6) {
		t.Errorf("loser.Mu = %v, want 1488", update.Loser.Mu)
	}
	if !almostEqual(update.Winner.Sigma, 339.5, 1e-6) {
		t.Errorf("winner.Sigma = %v, want 339.5", update.Winner.Sigma)
	}
	if !almostEqual(update.Loser.Sigma, 339.5, 1e-6) {
		t.Errorf("loser.Sigma = %v, want 339.5", update.Loser.Sigma)
	}
}

// Scenario 2 from spec §8: asymmetric uncertainty, RIGHT wins.
func TestApplyDecision_AsymmetricUpdate(t *testing.T) {
	c := defaultConfig()
	// A(1600,200) is the loser, B(1500,350) is the winner (outcome RIGHT).
	update := c.ApplyDecision(Posterior{Mu: 1500, Sigma: 350}, Posterior{Mu: 1600, Sigma: 200})

	if !almostEqual(update.Winner.Mu, 1515.4, 0.2) {
		t.Errorf("winner(B).Mu = %v, want ~1515.4", update.Winner.Mu)
	}
	if !almostEqual(update.Loser.Mu, 1591.2, 0.2) {
		t.Errorf("loser(A).Mu = %v, want ~1591.2", update.Loser.Mu)
	}
}

func TestDecaySigma_FloorsAtMinimum(t *testing.T) {
	c := defaultConfig()
	if s := c.DecaySigma(60); s != 60 {
		t.Fatalf("DecaySigma(60) = %v, want 60 (no further decrease at floor)", s)
	}
	if s := c.DecaySigma(61); s != 60 {
		t.Fatalf("DecaySigma(61) = %v, want floored to 60", s)
	}
}

// Scenario 3 from spec §8: SKIP draws an independent cooldown in
// [11,49] and leaves ratings untouched.
func TestApplySkip_CooldownRange(t *testing.T) {
	c := defaultConfig()
	for n := 0; n < 100; n++ {
		seq := n
		draw := func(span int) int { return seq % span }
		r := c.ApplySkip(draw)
		if r.NextEligibleDelta < c.SkipCooldownLo || r.NextEligibleDelta > c.SkipCooldownHi {
			t.Fatalf("delta %d out of range [%d,%d]", r.NextEligibleDelta, c.SkipCooldownLo, c.SkipCooldownHi)
		}
	}
}
