// Package walleterr defines the classified error surface of the client
// runtime. Every failure that reaches a caller carries a machine-readable
// code plus troubleshooting and recovery guidance derived purely from that
// code, so the UI layer never has to interpret raw transport errors.
package walleterr

import (
	"errors"
	"fmt"
)

type Code string

const (
	// Connection errors.
	CodeUserDeclined        Code = "USER_DECLINED"
	CodeWalletNotFound      Code = "WALLET_NOT_FOUND"
	CodeConnectionTimeout   Code = "CONNECTION_TIMEOUT"
	CodeNetworkError        Code = "NETWORK_ERROR"
	CodeAuthorizationFailed Code = "AUTHORIZATION_FAILED"
	CodeReconnectionFailed  Code = "RECONNECTION_FAILED"

	// Session errors.
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeSessionInvalid        Code = "SESSION_INVALID"
	CodeReauthorizationFailed Code = "REAUTHORIZATION_FAILED"
	CodeGameSessionExpired    Code = "GAME_SESSION_EXPIRED"
	CodeGameSessionInvalid    Code = "GAME_SESSION_INVALID"
	CodeMaxActionsReached     Code = "MAX_ACTIONS_REACHED"

	// Transaction errors.
	CodeTransactionRejected Code = "TRANSACTION_REJECTED"
	CodeTransactionTimeout  Code = "TRANSACTION_TIMEOUT"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeTransactionFailed   Code = "TRANSACTION_FAILED"
	CodeSigningFailed       Code = "SIGNING_FAILED"
	CodeDelegationTimeout   Code = "DELEGATION_TIMEOUT"
	CodeNotDelegated        Code = "NOT_DELEGATED"

	// Token operation errors.
	CodeRPCError            Code = "RPC_ERROR"
	CodeTimeout             Code = "TIMEOUT"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeInvalidAccount      Code = "INVALID_ACCOUNT"

	// Wallet compatibility errors.
	CodeWalletIncompatible  Code = "WALLET_INCOMPATIBLE"
	CodeWalletOutdated      Code = "WALLET_OUTDATED"
	CodeAdapterNotSupported Code = "ADAPTER_NOT_SUPPORTED"

	CodeUnknown  Code = "UNKNOWN_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
)

type Category string

const (
	CategoryConnection    Category = "connection"
	CategorySession       Category = "session"
	CategoryTransaction   Category = "transaction"
	CategoryToken         Category = "token"
	CategoryCompatibility Category = "compatibility"
	CategoryGeneric       Category = "generic"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ActionKind names a concrete recovery step the UI can offer.
type ActionKind string

const (
	ActionRetry          ActionKind = "retry"
	ActionReconnect      ActionKind = "reconnect"
	ActionInstallWallet  ActionKind = "install_wallet"
	ActionCheckNetwork   ActionKind = "check_network"
	ActionContactSupport ActionKind = "contact_support"
	ActionUpdateWallet   ActionKind = "update_wallet"
	ActionRestartApp     ActionKind = "restart_app"
	ActionAddFunds       ActionKind = "add_funds"
)

type Priority string

const (
	PriorityPrimary   Priority = "primary"
	PrioritySecondary Priority = "secondary"
)

type RecoveryAction struct {
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Action      ActionKind `json:"action"`
	Priority    Priority   `json:"priority"`
}

// Error is the enriched error form surfaced to callers. Message,
// Troubleshooting, Recovery, Severity and Retryable are a pure function of
// Code; Details carries the underlying technical cause when one exists.
type Error struct {
	Code            Code             `json:"code"`
	Message         string           `json:"message"`
	Details         string           `json:"technicalDetails,omitempty"`
	Troubleshooting []string         `json:"troubleshooting"`
	Recovery        []RecoveryAction `json:"recovery"`
	Severity        Severity         `json:"severity"`
	Retryable       bool             `json:"retryable"`

	cause error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows matching by code: errors.Is(err, walleterr.New(code)).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New builds the enriched error for a code from the catalog.
func New(code Code) *Error {
	entry, ok := catalog[code]
	if !ok {
		entry = catalog[CodeUnknown]
		return &Error{
			Code:            code,
			Message:         entry.message,
			Troubleshooting: entry.troubleshooting,
			Recovery:        entry.recovery,
			Severity:        entry.severity,
			Retryable:       entry.retryable,
		}
	}
	return &Error{
		Code:            code,
		Message:         entry.message,
		Troubleshooting: entry.troubleshooting,
		Recovery:        entry.recovery,
		Severity:        entry.severity,
		Retryable:       entry.retryable,
	}
}

// Wrap enriches an underlying error with a code. A nil cause yields nil.
// If the cause is already classified its original code wins.
func Wrap(code Code, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return cause
	}
	e := New(code)
	e.Details = cause.Error()
	e.cause = cause
	return e
}

// CodeOf extracts the classification code, or CodeUnknown for raw errors.
func CodeOf(err error) Code {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether the UI should auto-offer a retry.
func IsRetryable(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Retryable
	}
	return false
}

// CategoryOf groups a code into its taxonomy family.
func CategoryOf(code Code) Category {
	switch code {
	case CodeUserDeclined, CodeWalletNotFound, CodeConnectionTimeout, CodeNetworkError,
		CodeAuthorizationFailed, CodeReconnectionFailed:
		return CategoryConnection
	case CodeSessionExpired, CodeSessionInvalid, CodeReauthorizationFailed,
		CodeGameSessionExpired, CodeGameSessionInvalid, CodeMaxActionsReached:
		return CategorySession
	case CodeTransactionRejected, CodeTransactionTimeout, CodeInsufficientFunds,
		CodeTransactionFailed, CodeSigningFailed, CodeDelegationTimeout, CodeNotDelegated:
		return CategoryTransaction
	case CodeRPCError, CodeTimeout, CodeInsufficientBalance, CodeInvalidAccount:
		return CategoryToken
	case CodeWalletIncompatible, CodeWalletOutdated, CodeAdapterNotSupported:
		return CategoryCompatibility
	default:
		return CategoryGeneric
	}
}
