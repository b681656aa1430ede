package server

import (
	"encoding/json"
	"math"
	"time"
)

// Field limits for inbound packets, counted in characters rather than bytes.
// Oversized or mistyped fields reject the setup packet outright; on later
// packets they only void the field itself.
const (
	minConnectionIDLength = 12
	maxConnectionIDLength = 32
	maxSecretLength       = 32
	maxMessageLength      = 1024
	maxWorldNameLength    = 10
	maxNameLength         = 32
	maxPortraitLength     = 32
)

// setupPacket is the first frame a client sends. Fields stay raw so each one
// is validated individually, in a fixed order, with a precise error text.
type setupPacket struct {
	World        json.RawMessage `json:"world"`
	Guild        json.RawMessage `json:"guild"`
	Player       json.RawMessage `json:"player"`
	ConnectionID json.RawMessage `json:"connectionId"`
	Secret       json.RawMessage `json:"secret"`
	Name         json.RawMessage `json:"name"`
	Portrait     json.RawMessage `json:"portrait"`
}

// clientPacket is any frame after setup. Fields are independently optional;
// a single frame may carry both a secret update and a chat message.
type clientPacket struct {
	Secret     json.RawMessage `json:"secret"`
	Message    json.RawMessage `json:"message"`
	SecretOnly json.RawMessage `json:"secretOnly"`
}

type membersFrame struct {
	Type    string        `json:"type"`
	Members []memberEntry `json:"members"`
}

type memberEntry struct {
	PlayerID     int64  `json:"playerId"`
	Name         string `json:"name"`
	Portrait     string `json:"portrait"`
	SecretsMatch bool   `json:"secretsMatch"`
}

// presenceFrame announces a join or a device switch to the rest of the room.
type presenceFrame struct {
	Type         string `json:"type"`
	Player       int64  `json:"player"`
	Name         string `json:"name"`
	Portrait     string `json:"portrait"`
	Time         int64  `json:"time"`
	SecretsMatch bool   `json:"secretsMatch"`
}

type leaveFrame struct {
	Type   string `json:"type"`
	Player int64  `json:"player"`
	Time   int64  `json:"time"`
}

type secretChangeFrame struct {
	Type         string `json:"type"`
	Player       int64  `json:"player"`
	SecretsMatch bool   `json:"secretsMatch"`
}

type messageFrame struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	From       int64  `json:"from"`
	Time       int64  `json:"time"`
	SecretOnly bool   `json:"secretOnly"`
}

type disconnectFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func unixMilli() int64 {
	return time.Now().UnixMilli()
}

// decodeString accepts only a JSON string.
func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeInt accepts a JSON number with an integral value, so 7.0 passes while
// 7.5 and strings are rejected.
func decodeInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// decodeOptionalString accepts an absent field, JSON null, or a JSON string.
// Absent and null both decode to nil.
func decodeOptionalString(raw json.RawMessage) (*string, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	return decodeNullableString(raw)
}

// decodeNullableString accepts JSON null or a JSON string; an absent field is
// rejected so callers can distinguish "clear the value" from "no update".
func decodeNullableString(raw json.RawMessage) (*string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return s, true
}

// decodeOptionalBool accepts an absent field or a JSON boolean. Absent
// decodes to false.
func decodeOptionalBool(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}
