package dispatch

import "encoding/json"

// UnwrapConnectorEnvelope strips the {"schema":..., "payload":...} envelope
// the CDC connector's JSON converter puts around the outbox row value. The
// inner payload arrives either as a JSON string holding the serialized
// business payload or as the payload object itself. Values without an
// envelope pass through untouched.
func UnwrapConnectorEnvelope(value []byte) []byte {
	var env struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(value, &env); err != nil || len(env.Payload) == 0 {
		return value
	}

	var inner string
	if err := json.Unmarshal(env.Payload, &inner); err == nil {
		return []byte(inner)
	}
	return env.Payload
}
