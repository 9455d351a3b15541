package controller

import "errors"

var (
	ErrUnknownAirport   = errors.New("unknown airport")
	ErrAirportSaturated = errors.New("airport at approach capacity")
	ErrDuplicateFlight  = errors.New("aircraft id already in use")
	ErrNilTickable      = errors.New("controller has no tick logic")
	ErrUnknownAircraft  = errors.New("unknown aircraft")
	ErrNotQueued        = errors.New("aircraft not in landing queue")
	ErrNotEnRoute       = errors.New("aircraft not under regional control")
)
