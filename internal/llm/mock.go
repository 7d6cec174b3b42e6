package llm

import "context"

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response  string
	Err       error
	Embedding []float32
	EmbedErr  error
	Calls     [][]Message
}

func (m *MockClient) Generate(_ context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, messages)
	return m.Response, m.Err
}

func (m *MockClient) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return m.Embedding, m.EmbedErr
}
