package main

import "errors"

var (
	ErrNoMessage       = errors.New("no message given")
	ErrInvalidProperty = errors.New("invalid property")
	ErrReadStdin       = errors.New("read stdin")
	ErrCreateSink      = errors.New("create sink")
	ErrNotDelivered    = errors.New("some messages were not delivered")
)
