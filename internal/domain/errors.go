package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrRateLimit     = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrConfigLoad    = fmt.Errorf("failed to load configuration")
	ErrDecryption    = fmt.Errorf("decryption failed")
	ErrNotConfigured = fmt.Errorf("not configured")
)

// Orchestrator protocol errors. These surface to dispatch callers as
// structured results, never as panics or raw errors.
var (
	ErrNoServiceRegistered = fmt.Errorf("no service registered")
	ErrAgentBusy           = fmt.Errorf("Agent is already running")
	ErrAgentDisabled       = fmt.Errorf("Agent is disabled")
	ErrUnknownAgentType    = fmt.Errorf("unknown agent type")
	ErrTaskNotRunning      = fmt.Errorf("task is not running")
)

// Upstream errors. Adapters recover these locally to mock or empty results.
var (
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrUpstreamTimeout     = fmt.Errorf("upstream timed out")
	ErrUpstreamMalformed   = fmt.Errorf("upstream returned malformed payload")
)

// Execution errors.
var (
	ErrCancelled              = fmt.Errorf("cancelled")
	ErrAgentBodyFailure       = fmt.Errorf("agent execution failed")
	ErrNotificationSendFailed = fmt.Errorf("notification send failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Orchestrator.ExecuteAgent")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "store", "vendor"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUpstreamError reports whether err is one of the upstream failure kinds.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrUpstreamMalformed) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrAuthInvalid)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrUpstreamTimeout) ||
		errors.Is(err, ErrUpstreamUnavailable)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeDuplicate           ErrorCode = "DUPLICATE"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeNotConfigured       ErrorCode = "NOT_CONFIGURED"
	CodeNoServiceRegistered ErrorCode = "NO_SERVICE_REGISTERED"
	CodeAgentBusy           ErrorCode = "AGENT_BUSY"
	CodeAgentDisabled       ErrorCode = "AGENT_DISABLED"
	CodeUnknownAgentType    ErrorCode = "UNKNOWN_AGENT_TYPE"
	CodeTaskNotRunning      ErrorCode = "TASK_NOT_RUNNING"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	CodeUpstreamMalformed   ErrorCode = "UPSTREAM_MALFORMED"
	CodeCancelled           ErrorCode = "CANCELLED"
	CodeAgentBodyFailure    ErrorCode = "AGENT_BODY_FAILURE"
	CodeNotificationSend    ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeAgentNotFound     ErrorCode = "AGENT_NOT_FOUND"
	CodeTaskNotFound      ErrorCode = "TASK_NOT_FOUND"
	CodeKnowledgeNotFound ErrorCode = "KNOWLEDGE_NOT_FOUND"
	CodeCommentDuplicate  ErrorCode = "COMMENT_DUPLICATE"
	CodeVendorTimeout     ErrorCode = "VENDOR_TIMEOUT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:      CodeNotFound,
	ErrDuplicate:     CodeDuplicate,
	ErrInvalidInput:  CodeInvalidInput,
	ErrRateLimit:     CodeRateLimit,
	ErrAuthInvalid:   CodeAuthInvalid,
	ErrConfigLoad:    CodeConfigLoad,
	ErrDecryption:    CodeDecryption,
	ErrNotConfigured: CodeNotConfigured,

	ErrNoServiceRegistered: CodeNoServiceRegistered,
	ErrAgentBusy:           CodeAgentBusy,
	ErrAgentDisabled:       CodeAgentDisabled,
	ErrUnknownAgentType:    CodeUnknownAgentType,
	ErrTaskNotRunning:      CodeTaskNotRunning,

	ErrUpstreamUnavailable: CodeUpstreamUnavailable,
	ErrUpstreamTimeout:     CodeUpstreamTimeout,
	ErrUpstreamMalformed:   CodeUpstreamMalformed,

	ErrCancelled:              CodeCancelled,
	ErrAgentBodyFailure:       CodeAgentBodyFailure,
	ErrNotificationSendFailed: CodeNotificationSend,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"agent":     CodeAgentNotFound,
		"task":      CodeTaskNotFound,
		"knowledge": CodeKnowledgeNotFound,
	},
	ErrDuplicate: {
		"comment": CodeCommentDuplicate,
	},
	ErrUpstreamTimeout: {
		"vendor": CodeVendorTimeout,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	// Most specific first: protocol and execution kinds are checked before
	// the category sentinels they may wrap.
	for _, sentinel := range codeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}

// codeOrder fixes the lookup order for wrapped chains holding several sentinels.
var codeOrder = []error{
	ErrCancelled,
	ErrNoServiceRegistered,
	ErrAgentBusy,
	ErrAgentDisabled,
	ErrUnknownAgentType,
	ErrTaskNotRunning,
	ErrUpstreamTimeout,
	ErrUpstreamMalformed,
	ErrUpstreamUnavailable,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrNotificationSendFailed,
	ErrAgentBodyFailure,
	ErrNotConfigured,
	ErrConfigLoad,
	ErrDecryption,
	ErrInvalidInput,
	ErrDuplicate,
	ErrNotFound,
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
