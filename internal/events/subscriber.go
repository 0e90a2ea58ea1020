package events

import (
	"encoding/json"
	"fmt"
)

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// DecodeEntry parses an EntryAppended payload.
func DecodeEntry(data []byte) (EntryAppended, error) {
	var ev EntryAppended
	if err := json.Unmarshal(data, &ev); err != nil {
		return EntryAppended{}, fmt.Errorf("decoding entry event: %w", err)
	}
	return ev, nil
}

// DecodeState parses a StateChanged payload.
func DecodeState(data []byte) (StateChanged, error) {
	var ev StateChanged
	if err := json.Unmarshal(data, &ev); err != nil {
		return StateChanged{}, fmt.Errorf("decoding state event: %w", err)
	}
	return ev, nil
}
