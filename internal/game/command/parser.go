package command

import "strings"

// Prefix marks a chat message as a command.
const Prefix = "!"

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command, lowercased.
	Args []string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: Returns a ParseResult. If line is empty, Command is empty.
func Parse(line string) ParseResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return ParseResult{}
	}

	spaceIdx := strings.IndexFunc(line, isSpace)
	if spaceIdx < 0 {
		return ParseResult{
			Command: strings.ToLower(line),
		}
	}

	cmd := strings.ToLower(line[:spaceIdx])
	rest := strings.TrimSpace(line[spaceIdx+1:])

	var args []string
	if rest != "" {
		args = strings.Fields(strings.ToLower(rest))
	}

	return ParseResult{
		Command: cmd,
		Args:    args,
	}
}

// ParseChat parses a chat message that starts with Prefix.
//
// Postcondition: Returns (result, true) for a prefixed message with a command
// word, or (ParseResult{}, false) for ordinary chat.
func ParseChat(message string) (ParseResult, bool) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, Prefix) {
		return ParseResult{}, false
	}
	result := Parse(strings.TrimPrefix(message, Prefix))
	if result.Command == "" {
		return ParseResult{}, false
	}
	return result, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
