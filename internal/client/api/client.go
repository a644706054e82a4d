package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/transitauth/pkg/api"
)

// APIError ответ сервера с success=false
type APIError struct {
	Messages   []string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет первый шаг входа, сервер отправляет код на email
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginChallengeResponse, error) {
	var resp api.LoginChallengeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// VerifyOTP завершает вход кодом из письма и возвращает токен
func (c *Client) VerifyOTP(ctx context.Context, req api.VerifyOTPRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/verify-otp", "", req, &resp); err != nil {
		return nil, fmt.Errorf("verify otp request failed: %w", err)
	}
	return &resp, nil
}

// Me возвращает профиль владельца токена
func (c *Client) Me(ctx context.Context, token string) (*api.UserResponse, error) {
	var resp api.UserEnvelope
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/me", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return &resp.User, nil
}

// Refresh перевыпускает access token
func (c *Client) Refresh(ctx context.Context, token string) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// ChangePassword меняет пароль владельца токена
func (c *Client) ChangePassword(ctx context.Context, token string, req api.ChangePasswordRequest) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/change-password", token, req, nil); err != nil {
		return fmt.Errorf("change password request failed: %w", err)
	}
	return nil
}

// ForgotPassword запрашивает письмо со ссылкой сброса
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/forgot-password", "", api.EmailRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("forgot password request failed: %w", err)
	}
	return nil
}

// ResetPassword устанавливает новый пароль по токену из письма
func (c *Client) ResetPassword(ctx context.Context, req api.ResetPasswordRequest) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/reset-password", "", req, nil); err != nil {
		return fmt.Errorf("reset password request failed: %w", err)
	}
	return nil
}

// Logout завершает сессию на сервере. Токен может быть пустым.
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", token, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// envelope ответ сервера в общем формате
type envelope struct {
	Message    json.RawMessage `json:"message"`
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
}

// doRequest выполняет HTTP запрос и распаковывает data из конверта
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Messages: []string{strings.TrimSpace(string(respBody))}}
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Messages: decodeMessages(env.Message)}
	}

	// Декодируем успешный ответ
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// decodeMessages принимает message как строку или массив строк
func decodeMessages(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}
