package message

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type tags the shape of a message payload.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeFile  Type = "file"
	TypeAudio Type = "audio"
	TypeVideo Type = "video"
)

// ParseType validates a wire value. An empty value defaults to text.
func ParseType(value string) (Type, bool) {
	if value == "" {
		return TypeText, true
	}
	t := Type(value)
	switch t {
	case TypeText, TypeImage, TypeFile, TypeAudio, TypeVideo:
		return t, true
	}
	return "", false
}

// IsMedia reports whether content carries a file reference.
func (t Type) IsMedia() bool {
	return t == TypeImage || t == TypeFile || t == TypeAudio || t == TypeVideo
}

// Payload is the decoded content of a message.
type Payload interface {
	Kind() Type
}

// TextPayload is plain text.
type TextPayload struct {
	Text string
}

func (TextPayload) Kind() Type { return TypeText }

// FilePayload references stored media. Either URL or Key must be set; Key
// is an object key in attachment storage.
type FilePayload struct {
	Type     Type   `json:"-"`
	URL      string `json:"url,omitempty"`
	Key      string `json:"key,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func (p FilePayload) Kind() Type { return p.Type }

// DecodePayload decodes content according to its type tag. Media content
// must be a JSON object describing the file.
func DecodePayload(t Type, content string) (Payload, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required")
	}
	if !t.IsMedia() {
		if t != TypeText {
			return nil, fmt.Errorf("unknown message type %q", t)
		}
		return TextPayload{Text: content}, nil
	}

	var p FilePayload
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%s content must be a file reference object: %v", t, err)
	}
	if p.URL == "" && p.Key == "" {
		return nil, fmt.Errorf("%s content requires url or key", t)
	}
	if p.Size < 0 {
		return nil, fmt.Errorf("%s size must not be negative", t)
	}
	p.Type = t
	return p, nil
}

// EncodePayload returns the normalized JSON stored alongside media messages.
// Text payloads have no structured form.
func EncodePayload(p Payload) ([]byte, error) {
	fp, ok := p.(FilePayload)
	if !ok {
		return nil, nil
	}
	return json.Marshal(fp)
}

// FileReference returns the decoded file payload of a media message.
func (m Message) FileReference() (FilePayload, bool) {
	if !m.Type.IsMedia() {
		return FilePayload{}, false
	}
	p, err := DecodePayload(m.Type, m.Content)
	if err != nil {
		return FilePayload{}, false
	}
	fp, ok := p.(FilePayload)
	return fp, ok
}
