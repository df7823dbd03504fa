package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "neutral"
	}
}

// Config is the path-addressed settings tree modules read and write.
type Config interface {
	Get(path string, fallback any) any
	Has(path string) bool
	Set(path string, value any) error
	SetDefault(path string, value any) (bool, error)
	Unset(path string) error
	Save() error

	String(path, fallback string) string
	Int(path string, fallback int) int
	Bool(path string, fallback bool) bool
	Strings(path string) []string
	StringMap(path string) map[string]string
	Decode(path string, v any) error
}

// ReloadReport carries the outcome of each reload step. Steps do not roll
// back one another.
type ReloadReport struct {
	Unload error
	Load   error
	Init   error
}

// Err joins whatever steps failed, nil when all succeeded.
func (r ReloadReport) Err() error {
	return errors.Join(r.Unload, r.Load, r.Init)
}

// Modules is the lifecycle surface of the module registry.
type Modules interface {
	Load(ctx context.Context, name string) error
	Unload(ctx context.Context, name string) error
	Init(ctx context.Context, name string) error
	Reload(ctx context.Context, name string) ReloadReport
	Loaded() []*Module
	Get(name string) (*Module, bool)
}

// Host is the handle modules receive.
type Host interface {
	Config() Config
	Modules() Modules
	Client() Client
	Logger() zerolog.Logger

	// Resolve applies alias rules against the currently loaded modules.
	Resolve(name string) (*Command, *Module)
	// Prefix is the effective command prefix for a server, or the global
	// prefix when guildID is empty.
	Prefix(guildID string) string
	Notify(ctx context.Context, channelID string, kind NoticeKind, title, description string) error

	Uptime() time.Duration
	Restart()
	Shutdown()
}
