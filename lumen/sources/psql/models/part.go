package models

import "fmt"

type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "data-image"
	PartFile  PartType = "data-file"
)

// ContentPart is one segment of a message body. The Type tag picks the
// variant: Text for text parts, URL for image parts, Data (base64) plus
// Filename for file parts. MediaType applies to image and file parts.
type ContentPart struct {
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	URL       string   `json:"url,omitempty"`
	Data      string   `json:"data,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
	Filename  string   `json:"filename,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

func (p ContentPart) Validate() error {
	switch p.Type {
	case PartText:
		return nil
	case PartImage:
		if p.URL == "" {
			return fmt.Errorf("image part missing url")
		}
		return nil
	case PartFile:
		if p.Data == "" {
			return fmt.Errorf("file part missing data")
		}
		return nil
	default:
		return fmt.Errorf("unknown part type %q", p.Type)
	}
}

type PartList []ContentPart

func (l PartList) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("message has no parts")
	}
	for i, p := range l {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}
