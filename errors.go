package mytoken

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Error categories. Every error returned by the deployer matches exactly one of
// these through errors.Is.
var (
	ErrConfiguration = errors.New("mytoken: configuration error")
	ErrTransaction   = errors.New("mytoken: transaction error")
)

// Sentinel errors - Configuration
var (
	ErrMissingPrivateKey = errors.New("mytoken: PRIVATE_KEY is required")
	ErrInvalidPrivateKey = errors.New("mytoken: invalid private key")
	ErrChainIDMismatch   = errors.New("mytoken: chain ID mismatch")
	ErrInvalidArtifact   = errors.New("mytoken: invalid contract artifact")
	ErrInvalidConfig     = errors.New("mytoken: invalid configuration value")
)

// Sentinel errors - Transactions
var (
	ErrDeploymentReverted = errors.New("mytoken: transaction reverted")
	ErrReceiptTimeout     = errors.New("mytoken: timed out waiting for receipt")
	ErrSessionClosed      = errors.New("mytoken: broadcast session is closed")
)

// ConfigError reports a problem with operator-supplied input: the private key,
// config values or the contract artifact. Nothing has been broadcast when it is
// returned.
type ConfigError struct {
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

// Unwrap implements the errors.Unwrap interface for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches the ErrConfiguration category.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigError wraps err as a configuration error for field.
// Returns nil if the provided error is nil.
func NewConfigError(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Field: field, Err: err}
}

// TxError reports a failure talking to the network or a transaction that did
// not succeed on chain.
type TxError struct {
	Op     string
	TxHash common.Hash
	Err    error
}

// Error implements the error interface.
func (e *TxError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Op, e.TxHash.Hex(), e.Err)
}

// Unwrap implements the errors.Unwrap interface for error chaining.
func (e *TxError) Unwrap() error {
	return e.Err
}

// Is matches the ErrTransaction category.
func (e *TxError) Is(target error) bool {
	return target == ErrTransaction
}

// WrapTxError wraps an error with transaction operation context.
// Returns nil if the provided error is nil.
func WrapTxError(op string, txHash common.Hash, err error) error {
	if err == nil {
		return nil
	}
	return &TxError{
		Op:     op,
		TxHash: txHash,
		Err:    err,
	}
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
