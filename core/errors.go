package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, grouped by the taxonomy categories of the node's error
// handling design. Callers use errors.Is against these; CodeOf maps any of
// them (or an unrecognized error) to a stable string for RPC responses.

var (
	// Data-integrity errors.
	ErrDataMissing    = errors.New("data missing")
	ErrInvalidSize    = errors.New("invalid size")
	ErrInvalidChecksum = errors.New("invalid checksum")
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrCorrupt        = errors.New("corrupt data")

	// Validation errors.
	ErrBadSignature        = errors.New("bad signature")
	ErrHeightSkew          = errors.New("height skew")
	ErrPreviousMismatch    = errors.New("previous block mismatch")
	ErrBalanceMismatch     = errors.New("balance mismatch")
	ErrClaimTargetMissing  = errors.New("claim target missing")
	ErrClaimTargetWrongType = errors.New("claim target wrong type")
	ErrClaimDoubleSpend    = errors.New("claim double spend")
	ErrBadGenesis          = errors.New("bad genesis block")

	// Storage errors.
	ErrNotFound            = errors.New("not found")
	ErrNoLastBlock         = errors.New("no last block")
	ErrDuplicateBlock      = errors.New("duplicate block")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrIndexConflict       = errors.New("index conflict")
	ErrWriteFailed         = errors.New("write failed")
	ErrIDGenFailed         = errors.New("id generation failed")

	// Auth errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Transport / framing errors.
	ErrDecode  = errors.New("decode error")
	ErrTimeout = errors.New("timeout")

	// Policy errors.
	ErrPwned = errors.New("password is known-breached")

	// Blockpool errors.
	ErrUnknownCommand = errors.New("unknown blockpool command")
	ErrPoolClosed     = errors.New("blockpool closed")
)

// ErrorCode is a stable string identifying an error category, independent of
// the specific sentinel, suitable for RPC responses.
type ErrorCode string

const (
	CodeDataMissing     ErrorCode = "DATA_MISSING"
	CodeInvalidSize     ErrorCode = "INVALID_SIZE"
	CodeInvalidChecksum ErrorCode = "INVALID_CHECKSUM"
	CodeInvalidSymbol   ErrorCode = "INVALID_SYMBOL"
	CodeCorrupt         ErrorCode = "CORRUPT"

	CodeBadSignature         ErrorCode = "BAD_SIGNATURE"
	CodeHeightSkew           ErrorCode = "HEIGHT_SKEW"
	CodePreviousMismatch     ErrorCode = "PREVIOUS_MISMATCH"
	CodeBalanceMismatch      ErrorCode = "BALANCE_MISMATCH"
	CodeClaimTargetMissing   ErrorCode = "CLAIM_TARGET_MISSING"
	CodeClaimTargetWrongType ErrorCode = "CLAIM_TARGET_WRONG_TYPE"
	CodeClaimDoubleSpend     ErrorCode = "CLAIM_DOUBLE_SPEND"
	CodeBadGenesis           ErrorCode = "BAD_GENESIS"

	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeNoLastBlock         ErrorCode = "NO_LAST_BLOCK"
	CodeDuplicateBlock      ErrorCode = "DUPLICATE_BLOCK"
	CodeDuplicateTransaction ErrorCode = "DUPLICATE_TRANSACTION"
	CodeIndexConflict       ErrorCode = "INDEX_CONFLICT"
	CodeWriteFailed         ErrorCode = "WRITE_FAILED"
	CodeIDGenFailed         ErrorCode = "ID_GEN_FAILED"

	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeForbidden       ErrorCode = "FORBIDDEN"

	CodeDecode  ErrorCode = "DECODE_ERROR"
	CodeTimeout ErrorCode = "TIMEOUT"

	CodePwned ErrorCode = "PWNED"

	CodeUnknownCommand ErrorCode = "UNKNOWN_COMMAND"
	CodePoolClosed     ErrorCode = "POOL_CLOSED"

	CodeInternal ErrorCode = "INTERNAL"
)

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrDataMissing, CodeDataMissing},
	{ErrInvalidSize, CodeInvalidSize},
	{ErrInvalidChecksum, CodeInvalidChecksum},
	{ErrInvalidSymbol, CodeInvalidSymbol},
	{ErrCorrupt, CodeCorrupt},
	{ErrBadSignature, CodeBadSignature},
	{ErrHeightSkew, CodeHeightSkew},
	{ErrPreviousMismatch, CodePreviousMismatch},
	{ErrBalanceMismatch, CodeBalanceMismatch},
	{ErrClaimTargetMissing, CodeClaimTargetMissing},
	{ErrClaimTargetWrongType, CodeClaimTargetWrongType},
	{ErrClaimDoubleSpend, CodeClaimDoubleSpend},
	{ErrBadGenesis, CodeBadGenesis},
	// NoLastBlock is checked before the more general NotFound so a
	// NoLastBlock-wrapped error doesn't get mis-mapped to NotFound.
	{ErrNoLastBlock, CodeNoLastBlock},
	{ErrNotFound, CodeNotFound},
	{ErrDuplicateBlock, CodeDuplicateBlock},
	{ErrDuplicateTransaction, CodeDuplicateTransaction},
	{ErrIndexConflict, CodeIndexConflict},
	{ErrWriteFailed, CodeWriteFailed},
	{ErrIDGenFailed, CodeIDGenFailed},
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrForbidden, CodeForbidden},
	{ErrDecode, CodeDecode},
	{ErrTimeout, CodeTimeout},
	{ErrPwned, CodePwned},
	{ErrUnknownCommand, CodeUnknownCommand},
	{ErrPoolClosed, CodePoolClosed},
}

// CodeOf maps err to its stable ErrorCode via errors.Is, falling back to
// CodeInternal for anything unrecognized.
func CodeOf(err error) ErrorCode {
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}

// Wrap adds context to err, mirroring pkg/utils.Wrap for errors raised
// inside core where importing pkg/utils would create a needless round-trip.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
