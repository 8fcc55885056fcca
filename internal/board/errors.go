package board

import "errors"

// Simulator-fault sentinels. These are the "negative return code" plane from
// spec §6/§7: null arguments, exhausted slots, malformed contracts. They are
// always returned up the call stack, never absorbed into device state.
var (
	ErrInvalidConfig         = errors.New("board: invalid config")
	ErrFull                  = errors.New("board: no free slot")
	ErrInvalidArgument       = errors.New("board: invalid argument")
	ErrInvalidDeviceContract = errors.New("board: invalid device contract")
	ErrUnknownDevice         = errors.New("board: unknown device")
	ErrAlreadyBooted         = errors.New("board: already booted")
	ErrInitFailed            = errors.New("board: device init failed")
	ErrResetFailed           = errors.New("board: device reset failed")
)
