package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Group is the top-level object a command is nested in.
type Group string

const (
	GroupPushing Group = "pushing"
	GroupInfo    Group = "info"
	GroupSystem  Group = "system"
	GroupPrint   Group = "print"
)

// Envelope keys.
const (
	KeySequenceNumber = "sequenceNumber"
	KeyCommand        = "command"
	KeySequenceID     = "sequence_id"
)

var (
	ErrEmptyGroup    = errors.New("command group is empty")
	ErrEmptyCommand  = errors.New("command name is empty")
	ErrReservedParam = errors.New("parameter name is reserved")
)

// Command is an outbound request before a sequence number is assigned.
type Command struct {
	Group  Group
	Name   string
	Params map[string]any
}

// Validate checks that the command can be encoded.
func (c Command) Validate() error {
	if c.Group == "" {
		return ErrEmptyGroup
	}
	if c.Name == "" {
		return ErrEmptyCommand
	}
	for k := range c.Params {
		if k == KeyCommand || k == KeySequenceID {
			return fmt.Errorf("%w: %s", ErrReservedParam, k)
		}
	}
	return nil
}

// String returns "group/name".
func (c Command) String() string {
	return string(c.Group) + "/" + c.Name
}

// Encode renders the envelope for cmd stamped with seq.
func Encode(cmd Command, seq uint64) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	inner := make(map[string]any, len(cmd.Params)+2)
	for k, v := range cmd.Params {
		inner[k] = v
	}
	inner[KeyCommand] = cmd.Name
	inner[KeySequenceID] = strconv.FormatUint(seq, 10)

	data, err := json.Marshal(map[string]any{
		KeySequenceNumber: seq,
		string(cmd.Group): inner,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd, err)
	}
	return data, nil
}
