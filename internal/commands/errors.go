package commands

import "github.com/pkg/errors"

var (
	ErrDuplicateCommand = errors.New("command already registered")
	ErrTableFrozen      = errors.New("command table is frozen")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrSyncIncomplete   = errors.New("command menu sync incomplete")
)
