package ai

import "github.com/doeshing/compai/internal/domain"

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage domain.Usage `json:"usage"`
}

// FirstMessage returns the first choice's content exactly as the endpoint sent it.
func (c chatCompletionResponse) FirstMessage() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

func toChatMessages(system string, entries []domain.ChatMessage) []chatMessage {
	messages := make([]chatMessage, 0, len(entries)+1)
	if system != "" {
		messages = append(messages, chatMessage{Role: string(domain.RoleSystem), Content: system})
	}
	for _, entry := range entries {
		messages = append(messages, chatMessage{Role: string(entry.Role), Content: entry.Content})
	}
	return messages
}
