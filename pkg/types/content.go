package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"      // RoleUser marks turns authored by the user or by tool results.
	RoleAssistant Role = "assistant" // RoleAssistant marks turns produced by the model.
	RoleSystem    Role = "system"    // RoleSystem marks the leading system instructions.
)

// BlockKind tags the variant held by a ContentBlock.
type BlockKind string

const (
	BlockKindText       BlockKind = "text"
	BlockKindImage      BlockKind = "image"
	BlockKindStructured BlockKind = "structured"
)

// ImageData is a base64 encoded image and its format (png, jpeg).
type ImageData struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

// ContentBlock is one piece of a turn: text, an image, or a structured JSON document.
// Exactly one of Text, Image or JSON is meaningful, selected by Kind.
type ContentBlock struct {
	Kind  BlockKind              `json:"kind"`
	Text  string                 `json:"text,omitempty"`
	Image *ImageData             `json:"image,omitempty"`
	JSON  map[string]interface{} `json:"json,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockKindText, Text: text}
}

// ImageBlock creates an image content block from base64 data.
func ImageBlock(format, data string) ContentBlock {
	return ContentBlock{Kind: BlockKindImage, Image: &ImageData{Format: format, Data: data}}
}

// StructuredBlock creates a structured content block.
func StructuredBlock(doc map[string]interface{}) ContentBlock {
	return ContentBlock{Kind: BlockKindStructured, JSON: doc}
}

// IsMedia reports whether the block is an image or structured document.
func (b ContentBlock) IsMedia() bool {
	return b.Kind == BlockKindImage || b.Kind == BlockKindStructured
}

// PlainText returns the block as text. Structured blocks yield their "text"
// field when present, otherwise their JSON encoding. Images yield "".
func (b ContentBlock) PlainText() string {
	switch b.Kind {
	case BlockKindText:
		return b.Text
	case BlockKindStructured:
		if s, ok := b.JSON["text"].(string); ok {
			return s
		}
		data, err := json.Marshal(b.JSON)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// Turn is one entry in a conversation. Turns are treated as immutable once
// appended; edits produce replacement turns.
type Turn struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTurn creates a turn with the given role and blocks.
func NewTurn(role Role, blocks ...ContentBlock) Turn {
	content := make([]ContentBlock, len(blocks))
	copy(content, blocks)
	return Turn{Role: role, Content: content, CreatedAt: time.Now()}
}

// NewTextTurn creates a turn holding a single text block.
func NewTextTurn(role Role, text string) Turn {
	return NewTurn(role, TextBlock(text))
}

// Text joins the text blocks of the turn with newlines.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Content))
	for _, b := range t.Content {
		if b.Kind == BlockKindText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// HasMedia reports whether any block in the turn is an image or structured document.
func (t Turn) HasMedia() bool {
	for _, b := range t.Content {
		if b.IsMedia() {
			return true
		}
	}
	return false
}

// Images returns the image blocks of the turn.
func (t Turn) Images() []ImageData {
	var images []ImageData
	for _, b := range t.Content {
		if b.Kind == BlockKindImage && b.Image != nil {
			images = append(images, *b.Image)
		}
	}
	return images
}
