package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mememind-backend/internal/model"
)

const maxGeneratorResponseBytes = 1 << 20

// GenerationError 区分服务端报告的失败和网络层失败
type GenerationError struct {
	StatusCode int
	// Message 是服务端返回的 msg 字段，可能为空
	Message   string
	Transport bool
	// Malformed 表示响应体不是 JSON，按网络错误提示用户
	Malformed bool
	Cause     error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Transport:
		return fmt.Sprintf("generation transport error: %v", e.Cause)
	case e.Malformed:
		return fmt.Sprintf("generation response with status %d is not json: %v", e.StatusCode, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("generation failed with status %d: %s", e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("generation failed with status %d: %v", e.StatusCode, e.Cause)
	default:
		return fmt.Sprintf("generation failed with status %d", e.StatusCode)
	}
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// UserMessage 是展示给用户的提示
func (e *GenerationError) UserMessage() string {
	if e.Transport || e.Malformed {
		return model.MessageNetworkError
	}
	if e.Message != "" {
		return e.Message
	}
	return model.MessageGenerationFailed
}

// generateResponse 成功时带 url，失败时可能带 msg
type generateResponse struct {
	URL string `json:"url"`
	Msg string `json:"msg"`
}

// GeneratorClient 调用 POST {base_url}/generate_meme
type GeneratorClient struct {
	endpoint string
	client   *http.Client
}

func NewGeneratorClient(endpoint string, client *http.Client) *GeneratorClient {
	return &GeneratorClient{
		endpoint: endpoint,
		client:   client,
	}
}

func (g *GeneratorClient) Endpoint() string {
	return g.endpoint
}

// Generate 发起一次生成请求并返回图片地址，失败时返回 *GenerationError
func (g *GeneratorClient) Generate(ctx context.Context, genReq model.GenerationRequest) (string, error) {
	payload, err := json.Marshal(genReq)
	if err != nil {
		return "", &GenerationError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &GenerationError{Transport: true, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GenerationError{Transport: true, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratorResponseBytes))
	if err != nil {
		return "", &GenerationError{StatusCode: resp.StatusCode, Transport: true, Cause: err}
	}

	// 先解析响应体再看状态码：无论状态码如何，非 JSON 响应都视为网络错误
	var data generateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", &GenerationError{StatusCode: resp.StatusCode, Malformed: true, Cause: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GenerationError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(data.Msg),
		}
	}

	imageURL := strings.TrimSpace(data.URL)
	if imageURL == "" {
		return "", &GenerationError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("response has no url")}
	}

	return imageURL, nil
}
