package store

import (
	"errors"

	"github.com/vango-dev/statelift/pkg/proxy"
)

var (
	// ErrRevoked is returned when a destroyed consumer's view is read.
	ErrRevoked = proxy.ErrRevoked

	// ErrNotStore is returned when a value is not a state of any store.
	ErrNotStore = errors.New("statelift: value is not a store state")

	// ErrInvalidState is returned by New for unsupported initial values.
	ErrInvalidState = errors.New("statelift: invalid initial state")

	// ErrFlushOverflow is logged when a flush drops notifications.
	ErrFlushOverflow = errors.New("statelift: flush exceeded notification bound")
)
