// lumen/services/llm/llm.go
package llm

import (
	"context"
	"encoding/json"
	"io"

	httputils "lumen/lumen/utils/http"
	"lumen/lumen/utils/logging"

	"go.uber.org/zap"
)

type ChatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  interface{} `json:"options,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Client is what the chat controller talks to. OllamaClient is the real
// one; tests substitute a stub.
type Client interface {
	Run(ctx context.Context, req ChatRequest) (string, error)
	RunStream(ctx context.Context, req ChatRequest) (<-chan string, error)
}

type OllamaClient struct {
	baseURL string
	apiKey  string
}

func NewOllamaClient(baseURL, apiKey string) *OllamaClient {
	return &OllamaClient{baseURL: baseURL, apiKey: apiKey}
}

func (c *OllamaClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "llm_service_run")()
	req.Stream = false
	var resp ChatResponse
	if err := httputils.PostJSONWithAuth(ctx, c.baseURL+"/chat", c.apiKey, req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (c *OllamaClient) RunStream(ctx context.Context, req ChatRequest) (<-chan string, error) {
	defer logging.LogDuration(ctx, "llm_service_run_stream")()

	req.Stream = true
	body, err := httputils.PostStreamWithAuth(ctx, c.baseURL+"/chat", c.apiKey, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan string)

	go func() {
		defer func() {
			close(ch)
			body.Close()
		}()

		decoder := json.NewDecoder(body)

		for {
			// If caller cancelled context, stop reading.
			select {
			case <-ctx.Done():
				logging.AppLogger.Info("llm RunStream context cancelled")
				return
			default:
			}

			var chunk ChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					return
				}
				logging.ErrorLogger.Error("llm stream decode error", zap.Error(err))
				return
			}
			if chunk.Done {
				return
			}
			select {
			case ch <- chunk.Message.Content:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
