package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents fetch/transport errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeExtraction represents selector/price extraction errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeValidation represents item validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStorage represents persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeNotification represents notification transport errors
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// TrackerError represents a tracker-specific error, tagged with the item or
// channel it occurred for when it had one.
type TrackerError struct {
	Type    ErrorType
	Item    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *TrackerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Item, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Item, e.Message)
}

// Unwrap returns the underlying error
func (e *TrackerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is worth retrying
func (e *TrackerError) IsRetryable() bool {
	return e.Type == ErrorTypeNetwork
}

// New creates a new TrackerError
func New(errType ErrorType, item, message string, err error) *TrackerError {
	return &TrackerError{
		Type:    errType,
		Item:    item,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(item, message string, err error) *TrackerError {
	return New(ErrorTypeNetwork, item, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(item, message string, err error) *TrackerError {
	return New(ErrorTypeExtraction, item, message, err)
}

// NewValidation creates a new validation error
func NewValidation(item, message string) *TrackerError {
	return New(ErrorTypeValidation, item, message, nil)
}

// NewStorage creates a new storage error
func NewStorage(item, message string, err error) *TrackerError {
	return New(ErrorTypeStorage, item, message, err)
}

// NewNotification creates a new notification error
func NewNotification(channel, message string, err error) *TrackerError {
	return New(ErrorTypeNotification, channel, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *TrackerError {
	return New(ErrorTypeConfiguration, "", message, err)
}
