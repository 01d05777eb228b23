// Package command provides the chat command registry, parser, and built-in command definitions.
package command

// Categories for organizing commands.
const (
	CategoryGame   = "game"
	CategorySystem = "system"
)

// Handler identifiers mapping commands to chat handlers.
const (
	HandlerTimer = "timer"
	HandlerHelp  = "help"
)

// Timer subcommands.
const (
	TimerStart  = "start"
	TimerStop   = "stop"
	TimerStatus = "status"
)

// Command defines a player-invocable chat command.
type Command struct {
	// Name is the canonical command name, without the prefix.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to players.
	Help string
	// Usage shows the argument shape.
	Usage string
	// Category groups the command.
	Category string
	// Handler maps to the chat handler that executes the command.
	Handler string
}

// BuiltinCommands returns all built-in chat commands.
func BuiltinCommands() []Command {
	return []Command{
		{
			Name:     "timer",
			Aliases:  []string{"cronometro", "crono"},
			Help:     "Start, stop or check your countdown",
			Usage:    "!timer start <seconds> [once|loop] | !timer stop | !timer status",
			Category: CategoryGame,
			Handler:  HandlerTimer,
		},
		{Name: "help", Aliases: []string{"ayuda", "?"}, Help: "Show available commands", Usage: "!help", Category: CategorySystem, Handler: HandlerHelp},
	}
}
