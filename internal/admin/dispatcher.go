// Package admin implements the console command dispatcher: a closed
// verb table guarded by role checks, plus a small planner that maps
// free text onto a command invocation.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/heirvault/heirvault/internal/auth"
)

// Dispatcher errors.
var (
	ErrUnknownCommand   = errors.New("unknown admin command")
	ErrForbiddenCommand = errors.New("command not permitted for role")
	ErrMissingArgument  = errors.New("missing command argument")
)

// Args carries named command arguments.
type Args map[string]string

// Result is the outcome of a command.
type Result struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HandlerFunc executes one command.
type HandlerFunc func(ctx context.Context, args Args) (*Result, error)

// Command is one entry in the verb table.
type Command struct {
	Verb         string
	Description  string
	RequiredRole string
	// RequiredArgs are checked before the handler runs.
	RequiredArgs []string
	Handler      HandlerFunc
}

// Dispatcher routes verbs to registered commands. Registration happens
// at startup; Dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	commands map[string]Command
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		commands: make(map[string]Command),
		logger:   logger,
	}
}

// Register adds a command to the verb table.
func (d *Dispatcher) Register(cmd Command) error {
	if cmd.Verb == "" {
		return errors.New("command verb is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Verb)
	}
	if _, exists := d.commands[cmd.Verb]; exists {
		return fmt.Errorf("command %q already registered", cmd.Verb)
	}
	d.commands[cmd.Verb] = cmd
	return nil
}

// Verbs returns the registered verbs, sorted.
func (d *Dispatcher) Verbs() []string {
	out := make([]string, 0, len(d.commands))
	for verb := range d.commands {
		out = append(out, verb)
	}
	sort.Strings(out)
	return out
}

// Dispatch looks up the verb, enforces the role requirement, validates
// required arguments, and runs the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, actorRole, verb string, args Args) (*Result, error) {
	cmd, ok := d.commands[verb]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, verb)
	}
	if cmd.RequiredRole == auth.RoleAdmin && actorRole != auth.RoleAdmin {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenCommand, verb)
	}
	for _, name := range cmd.RequiredArgs {
		if args[name] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
	}

	d.logger.Info("admin command dispatched",
		slog.String("verb", verb),
		slog.String("actor_role", actorRole),
	)
	return cmd.Handler(ctx, args)
}
