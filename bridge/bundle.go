package bridge

import (
	"context"
	"encoding/json"

	"github.com/reglet-dev/rtools-bridge/application/schema"
	"github.com/reglet-dev/rtools-bridge/domain/entities"
	"github.com/reglet-dev/rtools-bridge/hostfuncs"
)

// CallRequest is the JSON payload of a slot invoked through a registry.
type CallRequest struct {
	Args []entities.Value `json:"args"`
}

// HandlerPrefix namespaces slot handlers in a registry. Several symbols
// (delim_match, ps_kill, ps_priority) are also host function names, and the
// two take different payloads.
const HandlerPrefix = "tools."

// HandlerName returns the registry name of the slot for symbol.
func HandlerName(symbol string) string { return HandlerPrefix + symbol }

// HandlerNames returns the registry names of all slots in symbol order.
func (b *Bridge) HandlerNames() []string {
	out := make([]string, len(b.names))
	for i, name := range b.names {
		out[i] = HandlerName(name)
	}
	return out
}

// Handlers exposes every slot as a ByteHandler named HandlerName(symbol), so
// a Bridge can be registered as a hostfuncs.HostFuncBundle next to the
// built-in bundles. The payload is a CallRequest and the response is the
// resulting Value.
func (b *Bridge) Handlers() map[string]hostfuncs.ByteHandler {
	out := make(map[string]hostfuncs.ByteHandler, len(b.slots))
	for _, name := range b.names {
		out[HandlerName(name)] = b.handler(name)
	}
	return out
}

func (b *Bridge) handler(name string) hostfuncs.ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req CallRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return hostfuncs.NewValidationError("failed to unmarshal call: " + err.Error()).ToJSON(), nil
			}
		}
		return json.Marshal(b.Call(ctx, name, req.Args...))
	}
}

// SlotInfo describes one slot.
type SlotInfo struct {
	RequestSchema json.RawMessage `json:"request_schema,omitempty"`
	Name          string          `json:"name"`
	Function      string          `json:"function"`
	Args          []string        `json:"args"`
	Arity         int             `json:"arity"`
}

// Describe lists the slots in name order with the JSON schema of the
// request each one sends to its host function.
func (b *Bridge) Describe() ([]SlotInfo, error) {
	infos := make([]SlotInfo, 0, len(b.names))
	for _, name := range b.names {
		s := b.slots[name]
		info := SlotInfo{
			Name:     s.Name,
			Function: s.Function,
			Args:     append([]string{}, s.Args...),
			Arity:    s.Arity(),
		}
		if s.Request != nil {
			raw, err := schema.GenerateSchema(s.Request)
			if err != nil {
				return nil, err
			}
			info.RequestSchema = raw
		}
		infos = append(infos, info)
	}
	return infos, nil
}
