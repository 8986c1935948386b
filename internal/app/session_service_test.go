package app

import (
	"context"
	"testing"

	"github.com/example/imagerank/internal/core/convergence"
	"github.com/example/imagerank/internal/core/pairing"
	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/ports/primary"
	"github.com/example/imagerank/internal/ports/secondary"
)

func digestN(n byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = 'a' + n
	}
	return string(b)
}

func newTestSessionService(rootSet bool) (*SessionServiceImpl, *mockImageRepository, *mockChoiceRepository, *mockAppStateRepository, *mockCatalogRepository) {
	imageRepo := newMockImageRepository()
	choiceRepo := newMockChoiceRepository()
	appStateRepo := newMockAppStateRepository()
	catalogRepo := newMockCatalogRepository()

	svc := NewSessionService(
		imageRepo, choiceRepo, appStateRepo, catalogRepo,
		fixedRootProvider{root: "/photos", set: rootSet},
		rating.Config{SigmaMin: 60, SigmaDecay: 0.97, KFactorBase: 24, KFactorMin: 8, KFactorMax: 48, SkipCooldownLo: 11, SkipCooldownHi: 49},
		pairing.Config{EpsilonGreedy: 0.1, SkipInjectProbability: 0.3, RecentImagesWindow: 64, RecentPairsWindow: 128, ShortlistK: 64, InfoGapAlpha: 0.01},
		convergence.Config{TargetTopK: 40, MinExposures: 5, SigmaConfidentMax: 90, StabilityWindow: 120, TargetExposures: 10},
	)
	return svc, imageRepo, choiceRepo, appStateRepo, catalogRepo
}

func TestNextPair_NoDirectorySet(t *testing.T) {
	svc, _, _, _, _ := newTestSessionService(false)

	_, err := svc.NextPair(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagNoDirectorySet {
		t.Errorf("expected TagNoDirectorySet, got %q", ce.Tag)
	}
}

func TestNextPair_NotEnoughImages(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	_ = imageRepo.EnsureCreated(context.Background(), digestN(0))

	_, err := svc.NextPair(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagNotEnoughImages {
		t.Errorf("expected TagNotEnoughImages, got %q", ce.Tag)
	}
}

func TestNextPair_ReturnsTwoDistinctDigests(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	_ = imageRepo.EnsureCreated(context.Background(), digestN(0))
	_ = imageRepo.EnsureCreated(context.Background(), digestN(1))

	pair, err := svc.NextPair(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.Left.Digest == pair.Right.Digest {
		t.Errorf("expected distinct digests, got %q twice", pair.Left.Digest)
	}
	if pair.Round != 0 {
		t.Errorf("expected round 0, got %d", pair.Round)
	}
}

func TestRecordChoice_RejectsSameDigest(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	d := digestN(0)
	_ = imageRepo.EnsureCreated(context.Background(), d)

	_, err := svc.RecordChoice(context.Background(), 0, d, d, primary.ChoiceLeft, false)
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagInvalidPair {
		t.Errorf("expected TagInvalidPair, got %q", ce.Tag)
	}
}

func TestRecordChoice_RejectsUnknownOutcome(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	left, right := digestN(0), digestN(1)
	_ = imageRepo.EnsureCreated(context.Background(), left)
	_ = imageRepo.EnsureCreated(context.Background(), right)

	_, err := svc.RecordChoice(context.Background(), 0, left, right, "MAYBE", false)
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagInvalidOutcome {
		t.Errorf("expected TagInvalidOutcome, got %q", ce.Tag)
	}
}

func TestRecordChoice_RejectsUnknownDigest(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	left := digestN(0)
	_ = imageRepo.EnsureCreated(context.Background(), left)

	_, err := svc.RecordChoice(context.Background(), 0, left, digestN(5), primary.ChoiceLeft, false)
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagUnknownDigest {
		t.Errorf("expected TagUnknownDigest, got %q", ce.Tag)
	}
}

func TestRecordChoice_RejectsStaleRound(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	left, right := digestN(0), digestN(1)
	_ = imageRepo.EnsureCreated(context.Background(), left)
	_ = imageRepo.EnsureCreated(context.Background(), right)

	_, err := svc.RecordChoice(context.Background(), 5, left, right, primary.ChoiceLeft, false)
	if err == nil {
		t.Fatal("expected error")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagStaleRound {
		t.Errorf("expected TagStaleRound, got %q", ce.Tag)
	}
}

func TestRecordChoice_UpdatesPostteriorsAndBumpsRound(t *testing.T) {
	svc, imageRepo, choiceRepo, _, _ := newTestSessionService(true)
	left, right := digestN(0), digestN(1)
	_ = imageRepo.EnsureCreated(context.Background(), left)
	_ = imageRepo.EnsureCreated(context.Background(), right)

	resp, err := svc.RecordChoice(context.Background(), 0, left, right, primary.ChoiceLeft, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Saved || resp.NextRound != 1 {
		t.Errorf("expected Saved=true NextRound=1, got %+v", resp)
	}

	winner, _ := imageRepo.Get(context.Background(), left)
	loser, _ := imageRepo.Get(context.Background(), right)
	if winner.Mu <= 1500 {
		t.Errorf("expected winner mu to increase, got %f", winner.Mu)
	}
	if loser.Mu >= 1500 {
		t.Errorf("expected loser mu to decrease, got %f", loser.Mu)
	}
	if winner.Exposures != 1 || loser.Exposures != 1 {
		t.Errorf("expected both images to gain one exposure")
	}

	choices, _ := choiceRepo.All(context.Background())
	if len(choices) != 0 {
		t.Errorf("ChoiceRepository.Append is driven by the caller, not RecordChoice's transactional path; expected 0, got %d", len(choices))
	}
}

func TestRecordChoice_StrictPairCheckRejectsMismatch(t *testing.T) {
	svc, imageRepo, _, _, _ := newTestSessionService(true)
	a, b, c := digestN(0), digestN(1), digestN(2)
	_ = imageRepo.EnsureCreated(context.Background(), a)
	_ = imageRepo.EnsureCreated(context.Background(), b)
	_ = imageRepo.EnsureCreated(context.Background(), c)

	pair, err := svc.NextPair(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := c
	if other == pair.Left.Digest || other == pair.Right.Digest {
		t.Skip("digest collision in fixture")
	}

	_, err = svc.RecordChoice(context.Background(), pair.Round, pair.Left.Digest, other, primary.ChoiceLeft, true)
	if err == nil {
		t.Fatal("expected error for mismatched pair under strict check")
	}
	ce := err.(*primary.CoreError)
	if ce.Tag != primary.TagDigestMismatch {
		t.Errorf("expected TagDigestMismatch, got %q", ce.Tag)
	}
}

func TestReset_ClearsStateAndRestoresCatalogDigests(t *testing.T) {
	svc, imageRepo, choiceRepo, appStateRepo, catalogRepo := newTestSessionService(true)
	d := digestN(0)
	_ = imageRepo.EnsureCreated(context.Background(), d)
	_ = catalogRepo.Upsert(context.Background(), []secondary.CatalogEntry{{Digest: d, Path: "/a.png"}})

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs, _ := imageRepo.All(context.Background())
	if len(recs) != 1 {
		t.Errorf("expected the catalog's one digest re-registered after reset, got %d", len(recs))
	}
	choices, _ := choiceRepo.All(context.Background())
	if len(choices) != 0 {
		t.Errorf("expected choices cleared, got %d", len(choices))
	}
	state, _ := appStateRepo.Get(context.Background())
	if state.CurrentRound != 0 {
		t.Errorf("expected round reset to 0, got %d", state.CurrentRound)
	}
}

func TestProgress_EmptyCatalogIsZero(t *testing.T) {
	svc, _, _, _, _ := newTestSessionService(true)

	report, err := svc.Progress(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Progress != 0 {
		t.Errorf("expected zero progress on empty catalog, got %f", report.Progress)
	}
}
