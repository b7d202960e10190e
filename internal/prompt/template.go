package prompt

import (
	"fmt"
	"strings"
)

// Role is a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image markers understood by LLaVA-style models. Engines substitute their own
// placeholder for ImageToken (see engine.Backend.ImageToken).
const (
	ImageToken        = "<image>"
	ImageStartToken   = "<im_start>"
	ImageEndToken     = "<im_end>"
	defaultSystemText = "You are a helpful assistant."
)

// Message is one turn. Empty Content on the final assistant turn marks the
// place where generation continues.
type Message struct {
	Role    Role
	Content string
}

// Template describes how a conversation is flattened into a prompt string.
type Template struct {
	Name   string
	System string
	// UseImStartEnd wraps the image token in ImageStartToken/ImageEndToken.
	UseImStartEnd bool
	render        func(t Template, msgs []Message) string
}

// Conversation accumulates turns for one template.
type Conversation struct {
	tmpl     Template
	messages []Message
}

// DefaultTemplate is the conversation format FastVLM checkpoints are trained on.
const DefaultTemplate = "qwen_2"

var templates = map[string]Template{
	"qwen_2": {Name: "qwen_2", System: defaultSystemText, render: renderChatML},
	"plain":  {Name: "plain", render: renderPlain},
}

// Lookup returns a registered template by name.
func Lookup(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("unknown conversation template %q", name)
	}
	return t, nil
}

// Default returns the DefaultTemplate.
func Default() Template { return templates[DefaultTemplate] }

// Names lists the registered template names.
func Names() []string {
	return []string{"plain", "qwen_2"}
}

// NewConversation starts an empty conversation.
func (t Template) NewConversation() *Conversation {
	return &Conversation{tmpl: t}
}

// Append adds a turn.
func (c *Conversation) Append(role Role, content string) {
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

// Render flattens the conversation.
func (c *Conversation) Render() string {
	return c.tmpl.render(c.tmpl, c.messages)
}

// ImageQuery prefixes query with the image placeholder the way LLaVA expects.
func (t Template) ImageQuery(imageToken, query string) string {
	if imageToken == "" {
		return query
	}
	if t.UseImStartEnd {
		return ImageStartToken + imageToken + ImageEndToken + "\n" + query
	}
	return imageToken + "\n" + query
}

// BuildImagePrompt renders a single user turn carrying an image, followed by an
// open assistant turn.
func (t Template) BuildImagePrompt(imageToken, query string) string {
	conv := t.NewConversation()
	conv.Append(RoleUser, t.ImageQuery(imageToken, query))
	conv.Append(RoleAssistant, "")
	return conv.Render()
}

// BuildTextPrompt is BuildImagePrompt without an image.
func (t Template) BuildTextPrompt(query string) string {
	return t.BuildImagePrompt("", query)
}

func renderChatML(t Template, msgs []Message) string {
	var b strings.Builder
	if t.System != "" {
		b.WriteString("<|im_start|>system\n" + t.System + "<|im_end|>\n")
	}
	for _, m := range msgs {
		b.WriteString("<|im_start|>" + string(m.Role) + "\n")
		if m.Content == "" && m.Role == RoleAssistant {
			continue
		}
		b.WriteString(m.Content + "<|im_end|>\n")
	}
	return b.String()
}

func renderPlain(t Template, msgs []Message) string {
	var parts []string
	if t.System != "" {
		parts = append(parts, t.System)
	}
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}
