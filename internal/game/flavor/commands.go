// Package flavor formats the chat, title and sound commands the bridge shows
// to players.
package flavor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Formatting codes used in messages.
const (
	Reset  = "§r"
	Green  = "§a"
	Red    = "§c"
	Yellow = "§e"
	Gold   = "§6"
)

// Everyone targets all players.
const Everyone = "@a"

// quote renders a player name as a command target.
func quote(target string) string {
	if strings.HasPrefix(target, "@") {
		return target
	}
	return fmt.Sprintf("%q", target)
}

// rawtext renders text as a Bedrock rawtext JSON component.
func rawtext(text string) string {
	type part struct {
		Text string `json:"text"`
	}
	b, _ := json.Marshal(struct {
		Rawtext []part `json:"rawtext"`
	}{Rawtext: []part{{Text: text}}})
	return string(b)
}

// Tellraw sends text to target's chat.
func Tellraw(target, text string) string {
	return fmt.Sprintf("tellraw %s %s", quote(target), rawtext(text))
}

// ActionbarRaw shows text above target's hotbar using a rawtext component.
func ActionbarRaw(target, text string) string {
	return fmt.Sprintf("titleraw %s actionbar %s", quote(target), rawtext(text))
}

// Actionbar shows text above target's hotbar.
func Actionbar(target, text string) string {
	return fmt.Sprintf("title %s actionbar %q", quote(target), text)
}

// Title shows a large title to target.
func Title(target, text string) string {
	return fmt.Sprintf("title %s title %s", quote(target), text)
}

// Subtitle shows a subtitle to target.
func Subtitle(target, text string) string {
	return fmt.Sprintf("title %s subtitle %s", quote(target), text)
}

// Msg whispers text from the command sender.
func Msg(target, text string) string {
	return fmt.Sprintf("msg %s %s", target, text)
}

// Playsound plays sound for target at their position.
func Playsound(sound, target string) string {
	return fmt.Sprintf("playsound %s %s ~ ~ ~ 1 1", sound, quote(target))
}

// Countdown formats the remaining seconds as the timer actionbar.
func Countdown(target string, remaining int) string {
	return ActionbarRaw(target, fmt.Sprintf("%s%02dm %02ds %s", Gold, remaining/60, remaining%60, Gold))
}

// ClearActionbar blanks target's actionbar.
func ClearActionbar(target string) string {
	return Actionbar(target, " ")
}
