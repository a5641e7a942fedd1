package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	body, err := Encode("attempt.completed", map[string]int{"score": 80}, at)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got struct {
		Type       string         `json:"type"`
		OccurredAt time.Time      `json:"occurredAt"`
		Payload    map[string]int `json:"payload"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "attempt.completed" || !got.OccurredAt.Equal(at) || got.Payload["score"] != 80 {
		t.Fatalf("decoded = %+v", got)
	}
}
