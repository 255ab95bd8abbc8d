package application

import (
	"log/slog"
	"sort"
	"sync"

	"station-assistant/internal/domain"
)

// Handler executes a command. It must not call back into the Station that
// dispatched it.
type Handler func(params domain.Params) (domain.Result, error)

type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry maps command names to handlers. Registering a name twice replaces
// the earlier handler.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		commands: make(map[string]Command),
	}
}

func (r *Registry) Register(name string, handler Handler) {
	r.RegisterCommand(Command{Name: name, Handler: handler})
}

func (r *Registry) RegisterCommand(cmd Command) {
	r.mu.Lock()
	_, replaced := r.commands[cmd.Name]
	r.commands[cmd.Name] = cmd
	r.mu.Unlock()

	r.logger.Info("registered command", "command", cmd.Name, "replaced", replaced)
}

func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns a copy of every registered command sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
