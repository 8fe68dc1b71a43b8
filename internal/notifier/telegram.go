package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"MexcPulse/internal/metrics"
	"MexcPulse/internal/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

var (
	// ErrMessageNotFound is returned when editing or deleting a message that
	// no longer exists in the chat.
	ErrMessageNotFound = errors.New("telegram: message not found")
	errNotModified     = errors.New("telegram: message is not modified")
)

// APIError is a non-ok Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      jsoniter.RawMessage `json:"result"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

// TelegramClient talks to the Bot API for a single chat. Every outbound
// message call passes through Throttle, which may be shared with other
// emitters.
type TelegramClient struct {
	BotToken   string
	ChatID     string
	APIURL     string
	Client     *http.Client
	Throttle   *ratelimit.Throttle
	MaxRetries int
	Metrics    *metrics.Recorder
	Log        zerolog.Logger
}

// NewTelegramClient creates a client with optional proxy support.
func NewTelegramClient(botToken, chatID, proxyURL string, throttle *ratelimit.Throttle, rec *metrics.Recorder, log zerolog.Logger) *TelegramClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramClient{
		BotToken: botToken,
		ChatID:   chatID,
		APIURL:   DefaultAPIURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Throttle:   throttle,
		MaxRetries: 3,
		Metrics:    rec,
		Log:        log.With().Str("component", "telegram").Logger(),
	}
}

// Send posts an HTML message and returns its message id.
func (t *TelegramClient) Send(ctx context.Context, text string) (int64, error) {
	var msg message
	err := t.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}, &msg)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// Edit replaces the text of an earlier message. Editing to identical text
// is not an error.
func (t *TelegramClient) Edit(ctx context.Context, id int64, text string) error {
	err := t.call(ctx, "editMessageText", map[string]interface{}{
		"chat_id":                  t.ChatID,
		"message_id":               id,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}, nil)
	if errors.Is(err, errNotModified) {
		return nil
	}
	return err
}

// Delete removes a message. A message that is already gone is not an error.
func (t *TelegramClient) Delete(ctx context.Context, id int64) error {
	err := t.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    t.ChatID,
		"message_id": id,
	}, nil)
	if errors.Is(err, ErrMessageNotFound) {
		return nil
	}
	return err
}

// call performs one Bot API method with throttling and retries on 429 and
// transport errors, backing off 1s, 2s, 4s... or as told by retry_after.
func (t *TelegramClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	var lastErr error
	for i := 0; i <= t.MaxRetries; i++ {
		if t.Throttle != nil {
			waited, err := t.Throttle.Wait(ctx)
			t.Metrics.RecordThrottleWait(waited)
			if err != nil {
				return err
			}
		}

		err := t.do(ctx, method, body, result)
		t.Metrics.RecordMessage(method, err)
		if err == nil {
			return nil
		}
		lastErr = err

		backoff := time.Duration(1<<uint(i)) * time.Second
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code != http.StatusTooManyRequests && apiErr.Code < 500 {
				return err
			}
			if apiErr.RetryAfter > 0 {
				backoff = apiErr.RetryAfter
			}
		} else if errors.Is(err, ErrMessageNotFound) || errors.Is(err, errNotModified) {
			return err
		}
		if i == t.MaxRetries {
			break
		}
		t.Log.Warn().Str("method", method).Int("attempt", i+1).Dur("backoff", backoff).Err(err).Msg("telegram call failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", method, t.MaxRetries+1, lastErr)
}

func (t *TelegramClient) do(ctx context.Context, method string, body []byte, result interface{}) error {
	apiURL := fmt.Sprintf("%s/bot%s/%s", t.APIURL, t.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var r apiResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !r.OK {
		desc := strings.ToLower(r.Description)
		switch {
		case strings.Contains(desc, "message is not modified"):
			return errNotModified
		case strings.Contains(desc, "message to edit not found"),
			strings.Contains(desc, "message to delete not found"):
			return fmt.Errorf("%s: %w", method, ErrMessageNotFound)
		}
		apiErr := &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if r.Parameters != nil && r.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(r.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if result != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
