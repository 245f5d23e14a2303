package detect

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"agentScope/internal/model"
)

// Catalog holds the watched method and event signatures of one contract
// family, keyed by selector and topic0 for matching.
type Catalog struct {
	parsed  abi.ABI
	methods map[[4]byte]abi.Method
	events  map[common.Hash]abi.Event
}

// NewCatalog parses the ABI document and registers the named methods and
// events. A name missing from the ABI is a configuration error.
func NewCatalog(abiJSON string, methodNames, eventNames []string) (*Catalog, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	methods := make(map[[4]byte]abi.Method, len(methodNames))
	for _, name := range methodNames {
		method, ok := parsed.Methods[name]
		if !ok {
			return nil, fmt.Errorf("method %s not in abi", name)
		}
		var selector [4]byte
		copy(selector[:], method.ID)
		methods[selector] = method
	}

	events := make(map[common.Hash]abi.Event, len(eventNames))
	for _, name := range eventNames {
		event, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("event %s not in abi", name)
		}
		events[event.ID] = event
	}

	return &Catalog{parsed: parsed, methods: methods, events: events}, nil
}

// EventTopic returns the topic0 hash of a registered event.
func (c *Catalog) EventTopic(name string) (common.Hash, bool) {
	event, ok := c.parsed.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	if _, registered := c.events[event.ID]; !registered {
		return common.Hash{}, false
	}
	return event.ID, true
}

// DecodeCall decodes a call input against the registered methods. Inputs that
// are too short or whose selector is unknown return ok=false, not an error.
func (c *Catalog) DecodeCall(input string) (string, map[string]interface{}, bool, error) {
	data, err := hexutil.Decode(input)
	if err != nil || len(data) < 4 {
		return "", nil, false, nil
	}

	var selector [4]byte
	copy(selector[:], data[:4])
	method, ok := c.methods[selector]
	if !ok {
		return "", nil, false, nil
	}

	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return "", nil, false, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return method.Name, args, true, nil
}

// DecodeLog decodes a raw log against the registered events, resolving both
// indexed topics and the data payload into one argument map.
func (c *Catalog) DecodeLog(log model.RawLog) (string, map[string]interface{}, error) {
	if len(log.Topics) == 0 {
		return "", nil, fmt.Errorf("missing topics")
	}
	topics, err := parseTopicHashes(log.Topics)
	if err != nil {
		return "", nil, err
	}

	event, ok := c.events[topics[0]]
	if !ok {
		return "", nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return "", nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}

	args := make(map[string]interface{})
	if err := abi.ParseTopicsIntoMap(args, indexed, topics[1:]); err != nil {
		return "", nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(args, data); err != nil {
		return "", nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return event.Name, args, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
