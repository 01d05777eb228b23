package actions

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
)

// ItemRequest names an item stack for a player.
type ItemRequest struct {
	PlayerName string `json:"player_name"`
	ItemID     string `json:"item_id"`
	Amount     int    `json:"amount"`
}

func (r ItemRequest) validate() error {
	if r.PlayerName == "" || r.ItemID == "" {
		return fmt.Errorf("%w: player_name and item_id are required", ErrInvalidRequest)
	}
	if r.Amount < 1 {
		return fmt.Errorf("%w: amount must be >= 1, got %d", ErrInvalidRequest, r.Amount)
	}
	return nil
}

// GiveItem gives the item stack to the player and returns the game's reply.
func (s *Service) GiveItem(ctx context.Context, req ItemRequest) (*protocol.Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, fmt.Sprintf("give %s %s %d", req.PlayerName, req.ItemID, req.Amount), true)
}

// TakeItem clears up to Amount of the item from the player's inventory and
// returns the game's reply.
func (s *Service) TakeItem(ctx context.Context, req ItemRequest) (*protocol.Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, fmt.Sprintf("clear %s %s %d", req.PlayerName, req.ItemID, req.Amount), true)
}
