package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zircote/subcog/internal/model"
)

// Payload is the JSON body sent to a webhook endpoint (spec.md §6.5):
//
//	{
//	  "event_id": "...", "event_type": "captured",
//	  "timestamp": "2024-01-15T10:30:00Z",
//	  "domain": "project", "data": {...}
//	}
type Payload struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp string                 `json:"timestamp"`
	Domain    string                 `json:"domain"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// FromEvent builds a Payload from a MemoryEvent.
func FromEvent(event model.MemoryEvent) Payload {
	return Payload{
		EventID:   event.Meta.EventID,
		EventType: string(event.Type),
		Timestamp: time.Unix(event.Meta.Timestamp, 0).UTC().Format(time.RFC3339),
		Domain:    event.Domain.String(),
		Data:      event.Data,
	}
}

// JSON serializes the payload in the default Subcog format.
func (p Payload) JSON() []byte {
	b, err := json.Marshal(p)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Render produces the wire body for format, reshaping into Slack/Discord
// conventions when requested (spec.md §6.5).
func (p Payload) Render(format Format) []byte {
	switch format {
	case FormatSlack:
		return p.slackJSON()
	case FormatDiscord:
		return p.discordJSON()
	default:
		return p.JSON()
	}
}

func (p Payload) message() string {
	switch p.EventType {
	case "captured":
		return fmt.Sprintf("Memory captured in %s domain", p.Domain)
	case "deleted":
		return fmt.Sprintf("Memory deleted in %s domain", p.Domain)
	case "updated":
		return fmt.Sprintf("Memory updated in %s domain", p.Domain)
	case "consolidated":
		return fmt.Sprintf("Memories consolidated in %s domain", p.Domain)
	case "test":
		return "Subcog webhook test event"
	default:
		return fmt.Sprintf("%s event in %s domain", p.EventType, p.Domain)
	}
}

func (p Payload) slackJSON() []byte {
	details, _ := json.Marshal(p.Data)
	out := map[string]interface{}{
		"text": p.message(),
		"blocks": []interface{}{
			map[string]interface{}{
				"type": "header",
				"text": map[string]interface{}{"type": "plain_text", "text": "Subcog: " + p.EventType, "emoji": true},
			},
			map[string]interface{}{
				"type": "section",
				"fields": []interface{}{
					map[string]interface{}{"type": "mrkdwn", "text": "*Event:*\n" + p.EventType},
					map[string]interface{}{"type": "mrkdwn", "text": "*Domain:*\n" + p.Domain},
				},
			},
			map[string]interface{}{
				"type": "section",
				"text": map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("*Details:*\n```%s```", details)},
			},
			map[string]interface{}{
				"type": "context",
				"elements": []interface{}{
					map[string]interface{}{"type": "mrkdwn", "text": fmt.Sprintf("Event ID: %s | %s", p.EventID, p.Timestamp)},
				},
			},
		},
	}
	b, err := json.Marshal(out)
	if err != nil {
		return p.JSON()
	}
	return b
}

func (p Payload) discordJSON() []byte {
	details, _ := json.Marshal(p.Data)
	out := map[string]interface{}{
		"content": p.message(),
		"embeds": []interface{}{
			map[string]interface{}{
				"title": "Subcog: " + p.EventType,
				"color": 5814783,
				"fields": []interface{}{
					map[string]interface{}{"name": "Event", "value": p.EventType, "inline": true},
					map[string]interface{}{"name": "Domain", "value": p.Domain, "inline": true},
					map[string]interface{}{"name": "Details", "value": fmt.Sprintf("```json\n%s\n```", details)},
				},
				"footer":    map[string]interface{}{"text": "Event ID: " + p.EventID},
				"timestamp": p.Timestamp,
			},
		},
	}
	b, err := json.Marshal(out)
	if err != nil {
		return p.JSON()
	}
	return b
}

// Sign computes the X-Subcog-Signature header value for body, HMAC-SHA256
// keyed on secret (spec.md §4.14 "sha256=<hex>").
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
