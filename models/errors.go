package models

import "errors"

// Domain errors surfaced by the lifecycle engine and its collaborators.
// Handlers map these to stable machine codes via ErrorCode/ErrorStatus;
// every operation either fully succeeds or returns one of these with zero
// writes committed.
var (
	ErrCompetitionNotFound    = errors.New("competition not found")
	ErrCompetitionNotJoinable = errors.New("competition is not accepting players")
	ErrCompetitionStarted     = errors.New("competition already started")
	ErrCompetitionNotActive   = errors.New("competition is not active")
	ErrAlreadyCompleted       = errors.New("competition already completed")
	ErrCompetitionFull        = errors.New("competition is full")
	ErrPrivateCompetition     = errors.New("competition is private")
	ErrNotJoined              = errors.New("user is not a participant")
	ErrForbidden              = errors.New("operation not permitted for this user")
	ErrInsufficientFunds      = errors.New("insufficient wallet balance")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrGameNotFound           = errors.New("game not found")
	ErrWalletNotFound         = errors.New("wallet not found")
)

var errorCodes = map[error]string{
	ErrCompetitionNotFound:    "NOT_FOUND",
	ErrCompetitionNotJoinable: "COMPETITION_NOT_JOINABLE",
	ErrCompetitionStarted:     "COMPETITION_STARTED",
	ErrCompetitionNotActive:   "COMPETITION_NOT_ACTIVE",
	ErrAlreadyCompleted:       "ALREADY_COMPLETED",
	ErrCompetitionFull:        "FULL",
	ErrPrivateCompetition:     "PRIVATE_COMPETITION",
	ErrNotJoined:              "NOT_JOINED",
	ErrForbidden:              "FORBIDDEN",
	ErrInsufficientFunds:      "INSUFFICIENT_FUNDS",
	ErrInvalidAmount:          "INVALID_AMOUNT",
	ErrGameNotFound:           "GAME_NOT_FOUND",
	ErrWalletNotFound:         "WALLET_NOT_FOUND",
}

var errorStatuses = map[error]int{
	ErrCompetitionNotFound:    404,
	ErrCompetitionNotJoinable: 409,
	ErrCompetitionStarted:     409,
	ErrCompetitionNotActive:   409,
	ErrAlreadyCompleted:       409,
	ErrCompetitionFull:        409,
	ErrPrivateCompetition:     403,
	ErrNotJoined:              403,
	ErrForbidden:              403,
	ErrInsufficientFunds:      402,
	ErrInvalidAmount:          400,
	ErrGameNotFound:           404,
	ErrWalletNotFound:         404,
}

// ErrorCode returns the stable machine-readable code for a domain error,
// or "INTERNAL" when err is not one of the enumerated failures.
func ErrorCode(err error) string {
	for e, code := range errorCodes {
		if errors.Is(err, e) {
			return code
		}
	}
	return "INTERNAL"
}

// ErrorStatus returns the HTTP status a domain error maps to.
func ErrorStatus(err error) int {
	for e, status := range errorStatuses {
		if errors.Is(err, e) {
			return status
		}
	}
	return 500
}

// IsDomainError reports whether err is one of the enumerated domain errors.
func IsDomainError(err error) bool {
	for e := range errorCodes {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
