package services

import (
	"fmt"

	"github.com/wabridge/whatsapp-mcp/models"
)

// buildMessagePayload constructs the gateway message payload for one
// content variant. The switch is exhaustive over the closed union; a
// variant added to models without a branch here fails at runtime with an
// explicit error instead of sending garbage.
func buildMessagePayload(chatID string, content models.Content) (map[string]any, error) {
	switch c := content.(type) {
	case models.TextContent:
		return map[string]any{
			"to":   chatID,
			"text": map[string]any{"body": c.Text},
		}, nil

	case models.MediaContent:
		media := map[string]any{}
		switch {
		case c.URL != "":
			media["link"] = c.URL
		case c.Data != "":
			media["base64"] = c.Data
		default:
			return nil, fmt.Errorf("media content requires a url or inline data")
		}
		if c.Caption != "" {
			media["caption"] = c.Caption
		}
		if c.Type == models.MediaDocument && c.Filename != "" {
			media["filename"] = c.Filename
		}
		return map[string]any{
			"to":   chatID,
			"type": c.Type,
			c.Type: media,
		}, nil

	case models.LocationContent:
		location := map[string]any{
			"latitude":  c.Latitude,
			"longitude": c.Longitude,
		}
		if c.Name != "" {
			location["name"] = c.Name
		}
		if c.Address != "" {
			location["address"] = c.Address
		}
		return map[string]any{
			"to":       chatID,
			"type":     "location",
			"location": location,
		}, nil

	case models.ContactContent:
		contact := map[string]any{
			"name": map[string]any{"formatted_name": c.Name},
			"phones": []map[string]any{
				{"phone": c.Phone, "type": "MOBILE"},
			},
		}
		if c.Email != "" {
			contact["emails"] = []map[string]any{
				{"email": c.Email, "type": "WORK"},
			}
		}
		return map[string]any{
			"to":       chatID,
			"type":     "contacts",
			"contacts": []map[string]any{contact},
		}, nil

	case models.ButtonsContent:
		buttons := make([]map[string]any, 0, len(c.Buttons))
		for _, b := range c.Buttons {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": b.ID, "title": b.Title},
			})
		}
		return map[string]any{
			"to":   chatID,
			"type": "interactive",
			"interactive": map[string]any{
				"type":   "button",
				"body":   map[string]any{"text": c.Text},
				"action": map[string]any{"buttons": buttons},
			},
		}, nil

	case models.ListContent:
		sections := make([]map[string]any, 0, len(c.Sections))
		for _, section := range c.Sections {
			rows := make([]map[string]any, 0, len(section.Items))
			for _, item := range section.Items {
				rows = append(rows, map[string]any{
					"id":          item.ID,
					"title":       item.Title,
					"description": item.Description,
				})
			}
			sections = append(sections, map[string]any{
				"title": section.Title,
				"rows":  rows,
			})
		}
		return map[string]any{
			"to":   chatID,
			"type": "interactive",
			"interactive": map[string]any{
				"type": "list",
				"body": map[string]any{"text": c.Text},
				"action": map[string]any{
					"button":   c.ButtonText,
					"sections": sections,
				},
			},
		}, nil

	case models.PollContent:
		// The gateway has no native poll message; render the options as
		// reply buttons, capped at the gateway's button limit.
		body := fmt.Sprintf("Poll: %s\n", c.Text)
		for i, option := range c.Options {
			body += fmt.Sprintf("\n%d. %s", i+1, option.Title)
		}

		options := c.Options
		if len(options) > 3 {
			options = options[:3]
		}
		buttons := make([]map[string]any, 0, len(options))
		for _, option := range options {
			title := option.Title
			if runes := []rune(title); len(runes) > 20 {
				title = string(runes[:20])
			}
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": option.ID, "title": title},
			})
		}
		return map[string]any{
			"to":   chatID,
			"type": "interactive",
			"interactive": map[string]any{
				"type":   "button",
				"body":   map[string]any{"text": body},
				"action": map[string]any{"buttons": buttons},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unhandled content type %q", content.ContentType())
	}
}
