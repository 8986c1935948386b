package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/imagerank/internal/core/catalog"
	"github.com/example/imagerank/internal/core/convergence"
	"github.com/example/imagerank/internal/core/pairing"
	"github.com/example/imagerank/internal/core/rating"
	"github.com/example/imagerank/internal/ports/primary"
	"github.com/example/imagerank/internal/ports/secondary"
)

// RootProvider reports whether a catalog root has ever been set, the
// distinction next_pair needs between NoDirectorySet and an eligible
// catalog that just happens to be empty.
type RootProvider interface {
	CurrentRoot() (string, bool)
}

// randSource adapts *rand.Rand to core/pairing.Rand.
type randSource struct{ r *rand.Rand }

func (s randSource) Float64() float64 { return s.r.Float64() }
func (s randSource) Intn(n int) int   { return s.r.Intn(n) }

// SessionServiceImpl is the Session Coordinator: it serializes
// next_pair/record_choice/reset behind a single write lock, per
// spec.md §5, and delegates to the pure core packages for every
// decision.
type SessionServiceImpl struct {
	imageRepo    secondary.ImageRepository
	choiceRepo   secondary.ChoiceRepository
	appStateRepo secondary.AppStateRepository
	catalogRepo  secondary.CatalogRepository
	rootProvider RootProvider

	ratingCfg      rating.Config
	pairingCfg     pairing.Config
	convergenceCfg convergence.Config

	mu       sync.RWMutex
	rng      *rand.Rand
	lastPair *primary.Pair
}

// NewSessionService creates a SessionServiceImpl wired to its
// repositories and the core configs derived from config.CoreConfig.
func NewSessionService(
	imageRepo secondary.ImageRepository,
	choiceRepo secondary.ChoiceRepository,
	appStateRepo secondary.AppStateRepository,
	catalogRepo secondary.CatalogRepository,
	rootProvider RootProvider,
	ratingCfg rating.Config,
	pairingCfg pairing.Config,
	convergenceCfg convergence.Config,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		imageRepo:      imageRepo,
		choiceRepo:     choiceRepo,
		appStateRepo:   appStateRepo,
		catalogRepo:    catalogRepo,
		rootProvider:   rootProvider,
		ratingCfg:      ratingCfg,
		pairingCfg:     pairingCfg,
		convergenceCfg: convergenceCfg,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextPair selects the next pair to show, per the six-step policy in
// core/pairing, and records it into the recency ring buffers.
func (s *SessionServiceImpl) NextPair(ctx context.Context) (primary.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rootProvider.CurrentRoot(); !ok {
		return primary.Pair{}, primary.NewCoreError(primary.ErrNotReady, primary.TagNoDirectorySet, "no catalog root has been set")
	}

	records, err := s.imageRepo.All(ctx)
	if err != nil {
		return primary.Pair{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load image records: %v", err))
	}

	state, err := s.appStateRepo.Get(ctx)
	if err != nil {
		return primary.Pair{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load app state: %v", err))
	}

	recentPairs := make([]pairing.Pair, len(state.RecentPairs))
	for i, p := range state.RecentPairs {
		recentPairs[i] = pairing.Pair{Left: p[0], Right: p[1]}
	}

	selected, pairErr := pairing.Select(records, state.CurrentRound, state.RecentImages, recentPairs, s.pairingCfg, randSource{s.rng})
	if pairErr != nil {
		return primary.Pair{}, primary.NewCoreError(primary.ErrNotReady, primary.TagNotEnoughImages, pairErr.Error())
	}

	state.RecentImages = pushBounded(state.RecentImages, []string{selected.Left, selected.Right}, s.pairingCfg.RecentImagesWindow)
	state.RecentPairs = pushBoundedPairs(state.RecentPairs, [2]string{selected.Left, selected.Right}, s.pairingCfg.RecentPairsWindow)

	if err := s.appStateRepo.Save(ctx, state); err != nil {
		return primary.Pair{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to persist app state: %v", err))
	}

	pair := primary.Pair{
		Round: state.CurrentRound,
		Left:  primary.ImageView{Digest: selected.Left},
		Right: primary.ImageView{Digest: selected.Right},
	}
	s.lastPair = &pair
	return pair, nil
}

// RecordChoice validates and commits a human's verdict on a shown pair.
func (s *SessionServiceImpl) RecordChoice(ctx context.Context, round int, left, right string, outcome primary.ChoiceOutcome, strictPairCheck bool) (primary.RecordChoiceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome != rating.OutcomeLeft && outcome != rating.OutcomeRight && outcome != rating.OutcomeSkip {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrInputInvalid, primary.TagInvalidOutcome, fmt.Sprintf("unknown outcome %q", outcome))
	}
	if left == right {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrInputInvalid, primary.TagInvalidPair, "left and right digests must differ")
	}
	if !catalog.ValidDigest(left) || !catalog.ValidDigest(right) {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrInputInvalid, primary.TagUnknownDigest, "malformed digest")
	}

	if strictPairCheck {
		if s.lastPair == nil || s.lastPair.Round != round ||
			!((s.lastPair.Left.Digest == left && s.lastPair.Right.Digest == right) ||
				(s.lastPair.Left.Digest == right && s.lastPair.Right.Digest == left)) {
			return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrConflict, primary.TagDigestMismatch, "pair does not match the last next_pair result")
		}
	}

	leftRecord, err := s.imageRepo.Get(ctx, left)
	if err != nil {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load left image: %v", err))
	}
	rightRecord, err := s.imageRepo.Get(ctx, right)
	if err != nil {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load right image: %v", err))
	}
	if leftRecord == nil || rightRecord == nil {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrConflict, primary.TagUnknownDigest, "digest no longer present in catalog")
	}

	state, err := s.appStateRepo.Get(ctx)
	if err != nil {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load app state: %v", err))
	}
	if state.CurrentRound != round {
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrConflict, primary.TagStaleRound, fmt.Sprintf("round %d is stale, current round is %d", round, state.CurrentRound))
	}

	newLeft, newRight, choice := s.applyOutcome(round, *leftRecord, *rightRecord, outcome)

	if err := s.imageRepo.CommitChoice(ctx, choice, newLeft, newRight); err != nil {
		if errors.Is(err, secondary.ErrStaleRound) {
			return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrConflict, primary.TagStaleRound, "round advanced before this choice committed")
		}
		return primary.RecordChoiceResponse{}, primary.NewCoreError(primary.ErrTransient, "", fmt.Sprintf("failed to commit choice: %v", err))
	}

	nextRound := round + 1
	state.CurrentRound = nextRound

	allRecords, err := s.imageRepo.All(ctx)
	if err == nil {
		snapshot := convergence.Rank(allRecords, nextRound, s.convergenceCfg.TargetTopK)
		state.TopKHistory = pushSnapshot(state.TopKHistory, snapshot, s.convergenceCfg.StabilityWindow)
	}
	_ = s.appStateRepo.Save(ctx, state)

	return primary.RecordChoiceResponse{Saved: true, NextRound: nextRound}, nil
}

// applyOutcome runs the rating engine over the chosen outcome and
// returns the updated records plus the audit-log ChoiceRecord.
func (s *SessionServiceImpl) applyOutcome(round int, left, right rating.Record, outcome primary.ChoiceOutcome) (rating.Record, rating.Record, secondary.ChoiceRecord) {
	choice := secondary.ChoiceRecord{
		Round: round, LeftDigest: left.Digest, RightDigest: right.Digest, Outcome: outcome,
		Timestamp:        time.Now().UnixNano(),
		LeftMuBefore:     left.Mu,
		RightMuBefore:    right.Mu,
		LeftSigmaBefore:  left.Sigma,
		RightSigmaBefore: right.Sigma,
	}

	switch outcome {
	case rating.OutcomeLeft, rating.OutcomeRight:
		var winner, loser *rating.Record
		if outcome == rating.OutcomeLeft {
			winner, loser = &left, &right
		} else {
			winner, loser = &right, &left
		}
		update := s.ratingCfg.ApplyDecision(winner.Posterior(), loser.Posterior())
		winner.Mu, winner.Sigma = update.Winner.Mu, update.Winner.Sigma
		loser.Mu, loser.Sigma = update.Loser.Mu, update.Loser.Sigma
		winner.Exposures++
		loser.Exposures++
		winner.Likes++
		loser.Unlikes++
		winner.LastSeenRound = round
		loser.LastSeenRound = round

	case rating.OutcomeSkip:
		leftDelta := s.ratingCfg.ApplySkip(s.rng.Intn)
		rightDelta := s.ratingCfg.ApplySkip(s.rng.Intn)
		left.Skips++
		left.Exposures++
		left.LastSeenRound = round
		left.NextEligibleRound = round + leftDelta.NextEligibleDelta
		right.Skips++
		right.Exposures++
		right.LastSeenRound = round
		right.NextEligibleRound = round + rightDelta.NextEligibleDelta
	}

	choice.LeftMuAfter = left.Mu
	choice.RightMuAfter = right.Mu
	choice.LeftSigmaAfter = left.Sigma
	choice.RightSigmaAfter = right.Sigma

	return left, right, choice
}

// Progress returns the current convergence metrics without taking the
// write lock — a read path served from the repositories directly.
func (s *SessionServiceImpl) Progress(ctx context.Context) (primary.ProgressReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.imageRepo.All(ctx)
	if err != nil {
		return primary.ProgressReport{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load image records: %v", err))
	}
	state, err := s.appStateRepo.Get(ctx)
	if err != nil {
		return primary.ProgressReport{}, primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to load app state: %v", err))
	}

	report := convergence.Evaluate(records, convergence.RankAll(records), state.TopKHistory, s.convergenceCfg)
	return primary.ProgressReport{
		Progress:       report.Progress,
		PortfolioReady: report.PortfolioReady,
		Quality:        report.Quality,
		Coverage:       report.Coverage,
		Confidence:     report.Confidence,
		BoundaryGap:    report.BoundaryGap,
		Stability:      report.Stability,
	}, nil
}

// Reset atomically clears all image posteriors, the choice log, and
// AppState. The catalog is unaffected.
func (s *SessionServiceImpl) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.imageRepo.Reset(ctx); err != nil {
		return primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to reset images: %v", err))
	}
	if err := s.choiceRepo.Reset(ctx); err != nil {
		return primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to reset choices: %v", err))
	}
	if err := s.appStateRepo.Reset(ctx); err != nil {
		return primary.NewCoreError(primary.ErrFatal, "", fmt.Sprintf("failed to reset app state: %v", err))
	}

	entries, err := s.catalogRepo.All(ctx)
	if err == nil {
		for _, e := range entries {
			_ = s.imageRepo.EnsureCreated(ctx, e.Digest)
		}
	}

	s.lastPair = nil
	return nil
}

func pushBounded(buf []string, items []string, window int) []string {
	buf = append(buf, items...)
	if len(buf) > window {
		buf = buf[len(buf)-window:]
	}
	return buf
}

func pushBoundedPairs(buf [][2]string, item [2]string, window int) [][2]string {
	buf = append(buf, item)
	if len(buf) > window {
		buf = buf[len(buf)-window:]
	}
	return buf
}

func pushSnapshot(history []convergence.Snapshot, snap convergence.Snapshot, window int) []convergence.Snapshot {
	history = append(history, snap)
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return history
}
