package scene

import (
	"encoding/json"
	"fmt"
)

// BallEvent is the only persisted entity: one insert or delete of a ball.
//
// Color, Position and Impulse are only meaningful on inserts. Tombstones carry
// the uuid alone.
type BallEvent struct {
	IsFixed  bool    `json:"is_fixed"`
	IsInsert bool    `json:"is_insert"`
	UUID     string  `json:"uuid"`
	Color    *string `json:"color"`
	Position *Vec3   `json:"position"`
	Impulse  *Vec3   `json:"impulse"`
}

// Tombstone returns the delete event for uuid.
func Tombstone(uuid string) BallEvent {
	return BallEvent{UUID: uuid}
}

// Transaction pairs a stored event with the id it was appended under.
type Transaction struct {
	ID   string    `json:"transaction_id"`
	Ball BallEvent `json:"ball_dto"`
}

// Encode serializes an event into its stored representation.
func Encode(ev BallEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode ball event: %w", err)
	}
	return data, nil
}

// Decode parses a stored event.
func Decode(data []byte) (BallEvent, error) {
	var ev BallEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BallEvent{}, fmt.Errorf("decode ball event: %w", err)
	}
	return ev, nil
}

// StringPtr returns a pointer to s. Convenience for building events.
func StringPtr(s string) *string {
	return &s
}

// VecPtr returns a pointer to a vector with the given components.
func VecPtr(x, y, z float64) *Vec3 {
	return &Vec3{X: x, Y: y, Z: z}
}
