package ledger

import (
	"errors"
	"fmt"

	"swapledger/internal/amount"
)

// Kind separates rejections of a single event or call from failures that
// must halt replay.
type Kind uint8

const (
	KindInvalid Kind = iota + 1
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code identifies the rule that rejected an event or call.
type Code string

const (
	CodeInvalidAmount         Code = "InvalidAmount"
	CodeInsufficientBalance   Code = "InsufficientBalance"
	CodeInsufficientLiquidity Code = "InsufficientLiquidity"
	CodeInsufficientOutput    Code = "InsufficientOutput"
	CodeInvalidPair           Code = "InvalidPair"
	CodePoolNotFound          Code = "PoolNotFound"
	CodePoolExisted           Code = "PoolExisted"
	CodeOverflow              Code = "Overflow"
	CodeNegativeReward        Code = "NegativeReward"
	CodeRewardDisabled        Code = "RewardDisabled"
	CodeNothingToClaim        Code = "NothingToClaim"
	CodeUnauthorized          Code = "Unauthorized"
	CodeCommitParentMismatch  Code = "CommitParentMismatch"
	CodeUnknownOperation      Code = "UnknownOperation"
	CodeMalformed             Code = "Malformed"
	CodeDuplicateDeploy       Code = "DuplicateDeploy"
	CodeNotDeployed           Code = "NotDeployed"
	CodeInvalidFeeRate        Code = "InvalidFeeRate"
	CodeCursorRegression      Code = "CursorRegression"
)

// Error is returned for every rule violation raised by the ledger.
type Error struct {
	Kind   Kind
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Reason)
}

func invalidf(code Code, format string, args ...interface{}) error {
	return &Error{Kind: KindInvalid, Code: code, Reason: fmt.Sprintf(format, args...)}
}

func fatalf(code Code, format string, args ...interface{}) error {
	return &Error{Kind: KindFatal, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err must halt replay for every tier.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindFatal
}

// IsInvalid reports whether err rejected only one event or call.
func IsInvalid(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindInvalid
}

// CodeOf returns the rule code carried by err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// arith maps amount arithmetic failures onto ledger rejections.
func arith(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, amount.ErrUnderflow):
		return invalidf(CodeInsufficientBalance, "%s", what)
	case errors.Is(err, amount.ErrDivByZero):
		return invalidf(CodeInsufficientLiquidity, "%s: division by zero", what)
	default:
		return invalidf(CodeOverflow, "%s: %v", what, err)
	}
}
