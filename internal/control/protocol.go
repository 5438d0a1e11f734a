// Package control implements the address-and-arguments transport spec.md
// §6 describes: a UDP socket carrying one JSON-framed message per
// datagram, address first, positional arguments after. No OSC library
// is used; the framing is plain JSON over UDP, approximating OSC's
// address/argument messages.
package control

import (
	"encoding/json"
	"fmt"
)

// Message is one control-protocol datagram: an address such as
// "/invoke" and its positional arguments.
type Message struct {
	Address string `json:"address"`
	Args    []any  `json:"args"`
}

// Encode serializes a message to a single line of JSON.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", m.Address, err)
	}
	return append(data, '\n'), nil
}

// Decode parses a single datagram payload into a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

// StringArg extracts the positional argument at index i as a string.
func StringArg(args []any, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

// ObjectArg extracts the positional argument at index i, JSON-decoded
// into dst (a pointer). Used for the JSON-blob arguments spec.md §6
// attaches to ingest commands.
func ObjectArg(args []any, i int, dst any) error {
	if i < 0 || i >= len(args) {
		return fmt.Errorf("missing argument %d", i)
	}
	data, err := json.Marshal(args[i])
	if err != nil {
		return fmt.Errorf("re-encode argument %d: %w", i, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode argument %d: %w", i, err)
	}
	return nil
}
