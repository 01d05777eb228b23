package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
)

// Context is the typed view of one pushed event handed to handlers.
type Context interface {
	// Name is the event name exactly as transmitted.
	Name() string
	// Body is the raw event payload.
	Body() json.RawMessage
	// Commander issues follow-up commands to the game client.
	Commander() command.Commander
}

type base struct {
	name string
	body json.RawMessage
	cmd  command.Commander
}

func (b base) Name() string                 { return b.name }
func (b base) Body() json.RawMessage        { return b.body }
func (b base) Commander() command.Commander { return b.cmd }

// Generic is the context for events without a dedicated shape.
type Generic struct {
	base
}

// Position is a world coordinate reported by the client.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerTransform reports a player's position and yaw.
type PlayerTransform struct {
	base
	Player   string
	Position Position
	YRot     float64
}

// PlayerMessage reports a chat message.
type PlayerMessage struct {
	base
	Sender  string
	Message string
	Type    string
}

// PlayerJoin reports a player entering the world.
type PlayerJoin struct {
	base
	Player string
}

type playerBody struct {
	Player struct {
		Name     string   `json:"name"`
		Position Position `json:"position"`
		YRot     float64  `json:"yRot"`
	} `json:"player"`
}

type messageBody struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type constructor func(b base) (Context, error)

// contextTable maps normalised event names to their context constructors.
var contextTable = map[string]constructor{
	"player_transform": func(b base) (Context, error) {
		var body playerBody
		if err := decodeBody(b.body, &body); err != nil {
			return nil, err
		}
		return &PlayerTransform{
			base:     b,
			Player:   body.Player.Name,
			Position: body.Player.Position,
			YRot:     body.Player.YRot,
		}, nil
	},
	"player_message": func(b base) (Context, error) {
		var body messageBody
		if err := decodeBody(b.body, &body); err != nil {
			return nil, err
		}
		return &PlayerMessage{base: b, Sender: body.Sender, Message: body.Message, Type: body.Type}, nil
	},
	"player_join": func(b base) (Context, error) {
		var body playerBody
		if err := decodeBody(b.body, &body); err != nil {
			return nil, err
		}
		return &PlayerJoin{base: b, Player: body.Player.Name}, nil
	},
}

func decodeBody(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding event body: %w", err)
	}
	return nil
}

// NewContext builds the typed context for eventName, falling back to Generic
// for names without a dedicated shape.
//
// Postcondition: Returns a non-nil Context, or an error if the body does not
// match the typed shape.
func NewContext(eventName string, body json.RawMessage, cmd command.Commander) (Context, error) {
	b := base{name: eventName, body: body, cmd: cmd}
	if ctor, ok := contextTable[SnakeCase(eventName)]; ok {
		return ctor(b)
	}
	return &Generic{base: b}, nil
}

// SnakeCase normalises a wire event name such as "PlayerTransform" into
// "player_transform". Runs of capitals are kept together ("HTTPPing" becomes
// "http_ping"); spaces and dashes become underscores.
func SnakeCase(name string) string {
	runes := []rune(strings.TrimSpace(name))
	var sb strings.Builder
	sb.Grow(len(runes) + 4)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '-' || r == '_':
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "_") {
				sb.WriteByte('_')
			}
			continue
		case unicode.IsUpper(r):
			if i > 0 && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "_") {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
