// Package content loads the static vocabularies the actions draw from: mob
// and effect names, text colors, timer follow-up events and roulette options.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Mob kinds select the announcement style when a mob is summoned.
const (
	KindHostile = "hostile"
	KindPassive = "passive"
	KindSpecial = "special"
	KindStrike  = "strike"
	KindPush    = "push"
)

// Mob describes a summonable entity.
type Mob struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Article string `yaml:"article"`
	Kind    string `yaml:"kind"`
}

// Effect describes a status effect the roulette can apply.
type Effect struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Bad  bool   `yaml:"bad"`
}

// Color is a text formatting code.
type Color struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// EventArgs parameterise a timer follow-up event.
type EventArgs struct {
	// PlayerName is "random" to target any known player; empty targets the
	// timer's owner.
	PlayerName string   `yaml:"player_name"`
	Username   string   `yaml:"username"`
	Mobs       []string `yaml:"mobs"`
	Quantity   int      `yaml:"quantity"`
	Radius     int      `yaml:"radius"`
}

// RandomEvent is one weighted entry of the timer follow-up table.
type RandomEvent struct {
	Name   string    `yaml:"name"`
	Action string    `yaml:"action"`
	Weight int       `yaml:"weight"`
	Args   EventArgs `yaml:"args"`
}

// RouletteOption is one outcome of the fixed roulette.
type RouletteOption struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Color   string `yaml:"color"`
}

// Content is the full vocabulary.
type Content struct {
	Mobs         []Mob            `yaml:"mobs"`
	Effects      []Effect         `yaml:"effects"`
	Colors       []Color          `yaml:"colors"`
	RandomEvents []RandomEvent    `yaml:"random_events"`
	Roulette     []RouletteOption `yaml:"roulette"`

	mobs map[string]Mob
}

// Known follow-up actions.
var knownActions = map[string]bool{
	"spawn_mob_at_player": true,
	"teleport_player":     true,
	"roulette_effect":     true,
}

// Default returns the built-in vocabulary.
//
// Postcondition: Returns a validated Content; panics if the embedded file is invalid.
func Default() *Content {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("content: built-in vocabulary invalid: %v", err))
	}
	return c
}

// Load reads the vocabulary at path. An empty path selects Default.
//
// Postcondition: Returns a validated Content, or an error naming path.
func Load(path string) (*Content, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML vocabulary. Unknown fields are rejected.
func Parse(data []byte) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.mobs = make(map[string]Mob, len(c.Mobs))
	for _, m := range c.Mobs {
		c.mobs[m.ID] = m
	}
	return &c, nil
}

// Validate checks the vocabulary invariants.
//
// Postcondition: Returns nil if valid, or an error describing all violations.
func (c *Content) Validate() error {
	var errs []string
	if len(c.Effects) == 0 {
		errs = append(errs, "effects must not be empty")
	}
	if len(c.AccentColors()) == 0 {
		errs = append(errs, "colors must include at least one accent color")
	}
	seen := make(map[string]bool, len(c.Mobs))
	for i, m := range c.Mobs {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("mobs[%d].id must not be empty", i))
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Sprintf("mobs[%d].id %q is duplicated", i, m.ID))
		}
		seen[m.ID] = true
		switch m.Kind {
		case "", KindHostile, KindPassive, KindSpecial, KindStrike, KindPush:
		default:
			errs = append(errs, fmt.Sprintf("mobs[%d].kind %q is unknown", i, m.Kind))
		}
	}
	for i, e := range c.Effects {
		if e.ID == "" || e.Name == "" {
			errs = append(errs, fmt.Sprintf("effects[%d] needs id and name", i))
		}
	}
	for i, ev := range c.RandomEvents {
		if !knownActions[ev.Action] {
			errs = append(errs, fmt.Sprintf("random_events[%d].action %q is unknown", i, ev.Action))
		}
		if ev.Weight < 0 {
			errs = append(errs, fmt.Sprintf("random_events[%d].weight must be >= 0", i))
		}
	}
	for i, o := range c.Roulette {
		if o.Name == "" || o.Command == "" {
			errs = append(errs, fmt.Sprintf("roulette[%d] needs name and command", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Mob returns the description for id. Unknown ids get a generic description
// so any entity the game accepts can still be summoned.
func (c *Content) Mob(id string) Mob {
	if m, ok := c.mobs[id]; ok {
		if m.Kind == "" {
			m.Kind = KindHostile
		}
		return m
	}
	return Mob{ID: id, Name: strings.ReplaceAll(id, "_", " "), Article: "a", Kind: KindHostile}
}

// AccentColors returns the colors usable for highlighting names: every color
// except black and the default green.
func (c *Content) AccentColors() []Color {
	out := make([]Color, 0, len(c.Colors))
	for _, col := range c.Colors {
		if col.Code == "§0" || col.Code == "§a" {
			continue
		}
		out = append(out, col)
	}
	return out
}
