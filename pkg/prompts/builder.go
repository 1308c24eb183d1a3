package prompts

import (
	"fmt"

	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/state"
)

// Builder constructs the messages for a turn request using a fluent interface.
// It separates prompt building from session state management.
type Builder struct {
	history       []chat.ChatMessage
	inventory     []string
	quest         string
	relationships state.RelationshipMap
	choice        string
	schema        []byte
	messages      []chat.ChatMessage
}

// New creates a new prompt builder.
func New() *Builder {
	return &Builder{
		messages: make([]chat.ChatMessage, 0),
	}
}

// WithHistory sets the turn log sent as conversational context.
func (b *Builder) WithHistory(history []chat.ChatMessage) *Builder {
	b.history = history
	return b
}

// WithState sets the sidebar state summarized in the final user message.
func (b *Builder) WithState(inventory []string, quest string, rels state.RelationshipMap) *Builder {
	b.inventory = inventory
	b.quest = quest
	b.relationships = rels
	return b
}

// WithChoice sets the text of the option the player picked. An empty choice
// with an empty history requests the opening turn.
func (b *Builder) WithChoice(choice string) *Builder {
	b.choice = choice
	return b
}

// WithSchema embeds the turn schema in the system prompt.
func (b *Builder) WithSchema(schema []byte) *Builder {
	b.schema = schema
	return b
}

// IsOpening reports whether the built request starts a new story.
func (b *Builder) IsOpening() bool {
	return b.choice == "" && len(b.history) == 0
}

// Build constructs and returns the final message array.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.choice == "" && len(b.history) > 0 {
		return nil, fmt.Errorf("choice is required after the opening turn")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.history)+2)

	// 1. System prompt
	system := SystemInstruction
	if len(b.schema) > 0 {
		system += "\n\n" + SchemaInstruction + string(b.schema)
	}
	b.messages = append(b.messages, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: system})

	// 2. Full turn log
	b.messages = append(b.messages, b.history...)

	// 3. Opening prompt or choice with state context
	if b.IsOpening() {
		b.messages = append(b.messages, chat.ChatMessage{Role: chat.ChatRolePlayer, Content: OpeningPrompt})
	} else {
		b.messages = append(b.messages, chat.ChatMessage{
			Role:    chat.ChatRolePlayer,
			Content: StateContext(b.inventory, b.quest, b.relationships, b.choice),
		})
	}

	return b.messages, nil
}
