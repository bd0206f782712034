package commands

import (
	"context"
	"fmt"

	"github.com/morezero/components/pkg/apperr"
)

// Commandable is implemented by business objects that expose a command set.
type Commandable interface {
	CommandSet() *CommandSet
}

// CommandSet is an ordered set of commands addressed by name.
type CommandSet struct {
	commands []*Command
	byName   map[string]*Command
}

// NewCommandSet creates an empty set.
func NewCommandSet() *CommandSet {
	return &CommandSet{byName: map[string]*Command{}}
}

// AddCommand adds a command. A command with the same name replaces the earlier one.
func (s *CommandSet) AddCommand(cmd *Command) {
	if _, exists := s.byName[cmd.Name()]; exists {
		for i, c := range s.commands {
			if c.Name() == cmd.Name() {
				s.commands[i] = cmd
			}
		}
	} else {
		s.commands = append(s.commands, cmd)
	}
	s.byName[cmd.Name()] = cmd
}

// AddCommands adds several commands.
func (s *CommandSet) AddCommands(cmds ...*Command) {
	for _, cmd := range cmds {
		s.AddCommand(cmd)
	}
}

// AddCommandSet merges every command of other into s.
func (s *CommandSet) AddCommandSet(other *CommandSet) {
	for _, cmd := range other.Commands() {
		s.AddCommand(cmd)
	}
}

// Commands returns the commands in insertion order.
func (s *CommandSet) Commands() []*Command {
	out := make([]*Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// FindCommand looks a command up by name.
func (s *CommandSet) FindCommand(name string) (*Command, bool) {
	cmd, ok := s.byName[name]
	return cmd, ok
}

// Execute runs the named command.
func (s *CommandSet) Execute(ctx context.Context, name string, params Parameters) (any, error) {
	cmd, ok := s.FindCommand(name)
	if !ok {
		return nil, apperr.NewBadRequestError("", "CMD_NOT_FOUND", fmt.Sprintf("Requested command %s does not exist", name)).
			WithDetails("command", name)
	}
	return cmd.Execute(ctx, params)
}
