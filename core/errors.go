package core

import "fmt"

// ErrKind is the closed enumeration of error codes the core exposes across
// component boundaries. Every fallible operation returns one wrapped in a
// *BuckyError rather than an ad-hoc error string, so callers can switch on
// Kind without parsing messages.
type ErrKind uint16

const (
	ErrOK ErrKind = iota
	ErrNotFound
	ErrAlreadyExists
	ErrUnmatch
	ErrInvalidParam
	ErrInvalidData
	ErrOutOfLimit
	ErrNoEnoughBalance
	ErrAccessDenied
	ErrSignatureError
	ErrBlockVerifyFailed
	ErrBlockDecodeFailed
	ErrTxDecodeFailed
	ErrNetworkError
	ErrNoneMiners
	ErrCantFindLeftUserDesc
	ErrUnknownExtensionTx
	ErrException
)

var errKindNames = map[ErrKind]string{
	ErrOK:                   "ok",
	ErrNotFound:             "not_found",
	ErrAlreadyExists:        "already_exists",
	ErrUnmatch:              "unmatch",
	ErrInvalidParam:         "invalid_param",
	ErrInvalidData:          "invalid_data",
	ErrOutOfLimit:           "out_of_limit",
	ErrNoEnoughBalance:      "no_enough_balance",
	ErrAccessDenied:         "access_denied",
	ErrSignatureError:       "signature_error",
	ErrBlockVerifyFailed:    "block_verify_failed",
	ErrBlockDecodeFailed:    "block_decode_failed",
	ErrTxDecodeFailed:       "tx_decode_failed",
	ErrNetworkError:         "network_error",
	ErrNoneMiners:           "none_miners",
	ErrCantFindLeftUserDesc: "cant_find_left_user_desc",
	ErrUnknownExtensionTx:   "unknown_extension_tx",
	ErrException:            "exception",
}

func (k ErrKind) String() string {
	if s, ok := errKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("errkind(%d)", uint16(k))
}

// BuckyError is the single error type returned across every core component
// boundary. It never unwraps to a transport or storage-driver error type;
// callers switch on Kind, not on Go error identity.
type BuckyError struct {
	Kind ErrKind
	Msg  string
}

func (e *BuckyError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewErr builds a *BuckyError with a formatted context message.
func NewErr(kind ErrKind, format string, args ...any) *BuckyError {
	return &BuckyError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrKindOf extracts the Kind of err if it is a *BuckyError, and ErrException
// otherwise. Useful at boundaries that only see the standard error interface
// (e.g. a driver call) and must fold it into the closed enumeration.
func ErrKindOf(err error) ErrKind {
	if err == nil {
		return ErrOK
	}
	if be, ok := err.(*BuckyError); ok {
		return be.Kind
	}
	return ErrException
}

// IsNotFound reports whether err is a *BuckyError of kind ErrNotFound.
func IsNotFound(err error) bool { return ErrKindOf(err) == ErrNotFound }
