package models

import (
	"encoding/json"
	"fmt"
)

// Content is the closed union of payload kinds a message can carry.
// Exactly one variant is populated per outgoing message; the "type"
// field of the JSON form is the discriminant.
type Content interface {
	ContentType() string
}

// TextContent is a plain text message body.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextContent) ContentType() string { return "text" }

// Media kinds accepted by MediaContent.
const (
	MediaImage    = "image"
	MediaDocument = "document"
	MediaAudio    = "audio"
	MediaVideo    = "video"
	MediaSticker  = "sticker"
)

// MediaContent references media by URL or inline base64 data.
type MediaContent struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Data     string `json:"data,omitempty"`
}

func (m MediaContent) ContentType() string { return m.Type }

// LocationContent is a geographic coordinate with optional labels.
type LocationContent struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

func (LocationContent) ContentType() string { return "location" }

// ContactContent is a contact card.
type ContactContent struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

func (ContactContent) ContentType() string { return "contact" }

// Button is one reply option in a ButtonsContent message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsContent is an interactive message with reply buttons.
type ButtonsContent struct {
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons"`
}

func (ButtonsContent) ContentType() string { return "buttons" }

// ListItem is one row of a ListSection.
type ListItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows of an interactive list message.
type ListSection struct {
	Title string     `json:"title"`
	Items []ListItem `json:"items"`
}

// ListContent is an interactive message with a sectioned list.
type ListContent struct {
	Type       string        `json:"type"`
	Text       string        `json:"text"`
	ButtonText string        `json:"button_text"`
	Sections   []ListSection `json:"sections"`
}

func (ListContent) ContentType() string { return "list" }

// PollOption is one answer of a PollContent message.
type PollOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PollContent is a poll message.
type PollContent struct {
	Type                 string       `json:"type"`
	Text                 string       `json:"text"`
	Options              []PollOption `json:"options"`
	AllowMultipleAnswers bool         `json:"allow_multiple_answers,omitempty"`
}

func (PollContent) ContentType() string { return "poll" }

// ParseContent decodes a raw JSON content object into its variant. The
// discriminant must be present and recognized; everything else is an
// error, so a malformed union never reaches payload construction.
func ParseContent(raw json.RawMessage) (Content, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}

	switch probe.Type {
	case "text":
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid text content: %w", err)
		}
		return c, nil
	case MediaImage, MediaDocument, MediaAudio, MediaVideo, MediaSticker:
		var c MediaContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid media content: %w", err)
		}
		return c, nil
	case "location":
		var c LocationContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid location content: %w", err)
		}
		return c, nil
	case "contact":
		var c ContactContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid contact content: %w", err)
		}
		return c, nil
	case "buttons":
		var c ButtonsContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid buttons content: %w", err)
		}
		return c, nil
	case "list":
		var c ListContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid list content: %w", err)
		}
		return c, nil
	case "poll":
		var c PollContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("invalid poll content: %w", err)
		}
		return c, nil
	case "":
		return nil, fmt.Errorf("content is missing a type")
	default:
		return nil, fmt.Errorf("unknown content type %q", probe.Type)
	}
}
