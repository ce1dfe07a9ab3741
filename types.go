package kiran

import (
	"kiran/internal/commands"
	"kiran/internal/decoder"
	"kiran/internal/dispatch"
	"kiran/internal/poller"
	"kiran/internal/types"
)

type (
	Handler       = dispatch.Handler
	Context       = dispatch.Context
	Listener      = dispatch.Listener
	PollingConfig = poller.Config
	PollingError  = poller.PollingError
	DecodePolicy  = decoder.Policy
	SyncReport    = commands.SyncReport
	Surface       = commands.Surface

	Update     = types.Update
	UpdateKind = types.UpdateKind
	Message    = types.Message
	User       = types.User
	Chat       = types.Chat
)

// Store keeps the state that must survive a restart.
type Store interface {
	poller.OffsetStore
	commands.ScopeStore
}

const (
	SurfaceSlash  = commands.SurfaceSlash
	SurfacePrefix = commands.SurfacePrefix
	SurfaceBoth   = commands.SurfaceBoth

	PolicySkip  = decoder.PolicySkip
	PolicyAbort = decoder.PolicyAbort

	KindMessage       = types.KindMessage
	KindEditedMessage = types.KindEditedMessage
	KindChannelPost   = types.KindChannelPost
	KindCallbackQuery = types.KindCallbackQuery
)

var (
	ErrAlreadyRunning   = poller.ErrAlreadyRunning
	ErrPollingFailed    = poller.ErrPollingFailed
	ErrDuplicateCommand = commands.ErrDuplicateCommand
	ErrTableFrozen      = commands.ErrTableFrozen
)
