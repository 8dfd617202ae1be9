package realtime

import (
	"encoding/json"
	"fmt"

	"lumina/internal/models"
)

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

func joinPayload(b Binding, accessToken string) map[string]any {
	p := map[string]any{
		"config": map[string]any{
			"postgres_changes": []changeFilter{{
				Event:  b.Event,
				Schema: "public",
				Table:  b.Table,
				Filter: b.Filter,
			}},
		},
	}
	if accessToken != "" {
		p["access_token"] = accessToken
	}
	return p
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func parseMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

func parseChange(payload json.RawMessage) (models.ChangeEvent, error) {
	var raw struct {
		Data models.ChangeEvent `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("unmarshal change: %w", err)
	}
	if raw.Data.Table == "" || raw.Data.Type == "" {
		return models.ChangeEvent{}, fmt.Errorf("change without table or type")
	}
	return raw.Data, nil
}

func replyStatus(payload json.RawMessage) string {
	var r struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(payload, &r)
	return r.Status
}
