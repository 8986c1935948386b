package primary

import (
	"context"

	"github.com/example/imagerank/internal/core/rating"
)

// ChoiceOutcome is the human's verdict on a shown pair.
type ChoiceOutcome = rating.Outcome

const (
	ChoiceLeft  = rating.OutcomeLeft
	ChoiceRight = rating.OutcomeRight
	ChoiceSkip  = rating.OutcomeSkip
)

// ErrorKind tags a CoreError with one of the abstract kinds spec.md §7
// defines: a stable, machine-readable category independent of message
// text.
type ErrorKind string

const (
	ErrInputInvalid  ErrorKind = "InputInvalid"
	ErrNotReady      ErrorKind = "NotReady"
	ErrConflict      ErrorKind = "Conflict"
	ErrResourceLimit ErrorKind = "ResourceLimit"
	ErrTransient     ErrorKind = "Transient"
	ErrFatal         ErrorKind = "Fatal"
)

// CoreError is the tagged-variant error every primary-port operation
// returns instead of raw fmt.Errorf text, so callers can branch on Kind.
type CoreError struct {
	Kind    ErrorKind
	Tag     string // stable machine-readable tag, e.g. "StaleRound"
	Message string
}

func (e *CoreError) Error() string { return e.Message }

func NewCoreError(kind ErrorKind, tag, message string) *CoreError {
	return &CoreError{Kind: kind, Tag: tag, Message: message}
}

// Well-known tags from the §6 operation table.
const (
	TagDirectoryNotFound = "DirectoryNotFound"
	TagTooManyFiles      = "TooManyFiles"
	TagNotEnoughImages   = "NotEnoughImages"
	TagNoDirectorySet    = "NoDirectorySet"
	TagStaleRound        = "StaleRound"
	TagUnknownDigest     = "UnknownDigest"
	TagInvalidOutcome    = "InvalidOutcome"
	TagDigestMismatch    = "DigestMismatch"
	TagFileMissing       = "FileMissing"
	TagInvalidPair       = "InvalidPair"
)

// Pair is the next_pair success payload: a round and two image views.
type Pair struct {
	Round int
	Left  ImageView
	Right ImageView
}

// RecordChoiceResponse is the record_choice success payload.
type RecordChoiceResponse struct {
	Saved     bool
	NextRound int
}

// ProgressReport mirrors convergence.Report for the outer layer, kept
// as its own type so primary consumers never import internal/core
// directly.
type ProgressReport struct {
	Progress       float64
	PortfolioReady bool
	Quality        string
	Coverage       float64
	Confidence     float64
	BoundaryGap    float64
	Stability      float64
}

// SessionService is the primary port for the Session Coordinator: the
// four operations spec.md §4.5 exposes to the outer HTTP layer.
type SessionService interface {
	// NextPair selects the next pair to show. Returns a CoreError
	// tagged NotEnoughImages or NoDirectorySet on failure.
	NextPair(ctx context.Context) (Pair, error)

	// RecordChoice validates and commits a human's verdict on a shown
	// pair. strictPairCheck, when true, also requires (left,right) to
	// match the digests from the most recent NextPair call.
	RecordChoice(ctx context.Context, round int, left, right string, outcome ChoiceOutcome, strictPairCheck bool) (RecordChoiceResponse, error)

	// Progress returns the current convergence metrics.
	Progress(ctx context.Context) (ProgressReport, error)

	// Reset atomically clears all image posteriors, the Choice log, and
	// AppState. The catalog is unaffected.
	Reset(ctx context.Context) error
}
