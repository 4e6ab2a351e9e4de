package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/mezonai/mmn-wallet/jsonx"
)

// WalletErrorCode represents standardized error codes for wallet operations
type WalletErrorCode string

const (
	// General errors
	ErrCodeInternal WalletErrorCode = "internal_error"

	// Key and address errors
	ErrCodeInvalidMetaAddress  WalletErrorCode = "invalid_meta_address"
	ErrCodeInvalidKeyFormat    WalletErrorCode = "invalid_key_format"
	ErrCodeKeyDerivationFailed WalletErrorCode = "key_derivation_failed"

	// Backup errors
	ErrCodeEncryptionFailed WalletErrorCode = "encryption_failed"
	ErrCodeDecryptionFailed WalletErrorCode = "decryption_failed"

	// Settlement errors
	ErrCodeQueueFull           WalletErrorCode = "queue_full"
	ErrCodeInsufficientBalance WalletErrorCode = "insufficient_balance"
	ErrCodeBlockchain          WalletErrorCode = "blockchain_error"
	ErrCodeStorageFailed       WalletErrorCode = "storage_failed"
)

// WalletError represents a standardized wallet error
type WalletError struct {
	Code    WalletErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *WalletError) Error() string {
	err, _ := jsonx.Marshal(WalletError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// NewError creates a new WalletError and returns it as error interface
func NewError(code WalletErrorCode, message string) error {
	return &WalletError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new WalletError with a formatted message
func NewErrorf(code WalletErrorCode, format string, args ...interface{}) error {
	return &WalletError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf extracts the wallet error code from err, or ErrCodeInternal
// when err is not a WalletError.
func CodeOf(err error) WalletErrorCode {
	var we *WalletError
	if stderrors.As(err, &we) {
		return we.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given wallet error code.
func Is(err error, code WalletErrorCode) bool {
	var we *WalletError
	return stderrors.As(err, &we) && we.Code == code
}
