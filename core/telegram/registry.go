package telegram

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	errInvalidCommand   = errors.New("handler or description missing")
	errNoSlash          = errors.New("name must start with /")
	errDuplicateCommand = errors.New("already registered")
)

// Registry holds the slash commands of a bot keyed by "/name".
type Registry struct {
	mu       sync.RWMutex
	commands map[string]commands.Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds cmd under name. Invalid or duplicate registrations
// are logged and ignored; the first registration of a name wins.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if err := r.add(name, cmd); err != nil {
		logger.TWire.Warn("command skipped",
			slog.String("event", "tg.wire.command"),
			slog.String("command", name),
			slog.String("err", err.Error()),
		)
	}
}

func (r *Registry) add(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		return errInvalidCommand
	case !strings.HasPrefix(name, "/"):
		return errNoSlash
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[name]; ok {
		return errDuplicateCommand
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns the command menu entries sorted by name. With
// visibleOnly, hidden and admin commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if visibleOnly && !cmd.InMenu() {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	return list
}

// LookupCommand resolves the first word of text, with or without the
// slash, to a registered command or alias. It returns the canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", commands.Command{}, false
	}
	name := "/" + strings.TrimPrefix(fields[0], "/")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// InitBotCommands publishes the visible commands as the bot's menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "command menu not set",
			slog.String("event", "tg.wire.menu"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.Info("command menu set",
		slog.String("event", "tg.wire.menu"),
		slog.Int("count", len(list)),
	)
}
