package ble

import "github.com/pkg/errors"

// Error is the closed set of errors surfaced by the discovery engine.
// Success is represented by a nil error.
type Error uint8

const (
	ErrInvalidParameter Error = iota + 1
	ErrParameterOutOfRange
	ErrInvalidState
	ErrStackBusy
	ErrNoMemory
	ErrOperationNotPermitted
	ErrUnspecified
)

func (e Error) Error() string {
	switch e {
	case ErrInvalidParameter:
		return "ble: invalid parameter"
	case ErrParameterOutOfRange:
		return "ble: parameter out of range"
	case ErrInvalidState:
		return "ble: invalid state"
	case ErrStackBusy:
		return "ble: stack busy"
	case ErrNoMemory:
		return "ble: no memory"
	case ErrOperationNotPermitted:
		return "ble: operation not permitted"
	default:
		return "ble: unspecified error"
	}
}

// Status is a raw error code returned by the underlying stack when a
// request cannot be issued. The values follow the Nordic SoftDevice.
type Status uint32

const (
	StatusSuccess           Status = 0
	StatusNoMemory          Status = 4
	StatusInvalidParam      Status = 7
	StatusInvalidState      Status = 8
	StatusInvalidAddr       Status = 16
	StatusBusy              Status = 17
	StatusNoResources       Status = 19
	StatusInvalidConnHandle Status = 0x3002
)

func (s Status) Error() string {
	switch s {
	case StatusSuccess:
		return "no error"
	case StatusNoMemory:
		return "no memory for operation"
	case StatusInvalidParam:
		return "invalid parameter"
	case StatusInvalidState:
		return "invalid state, operation disallowed in this state"
	case StatusInvalidAddr:
		return "bad memory address"
	case StatusBusy:
		return "busy"
	case StatusNoResources:
		return "not enough resources for operation"
	case StatusInvalidConnHandle:
		return "invalid connection handle"
	default:
		return "other stack error"
	}
}

// TranslateStatus maps a raw stack error onto the closed Error set.
// Errors already in the set are returned unchanged.
func TranslateStatus(err error) error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		return e
	}
	var s Status
	if !errors.As(err, &s) {
		return ErrUnspecified
	}
	switch s {
	case StatusSuccess:
		return nil
	case StatusInvalidConnHandle, StatusInvalidAddr, StatusInvalidParam:
		return ErrInvalidParameter
	case StatusNoMemory, StatusNoResources:
		return ErrNoMemory
	case StatusBusy:
		return ErrStackBusy
	case StatusInvalidState:
		return ErrInvalidState
	default:
		return ErrUnspecified
	}
}
