package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"thaliya-gateway/logger"
)

// SMSSender delivers OTP codes through an external SMS provider's JSON
// API.
type SMSSender struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewSMSSender(baseURL, apiKey string) *SMSSender {
	return &SMSSender{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// SendOTP posts the verification message to the provider.
func (s *SMSSender) SendOTP(ctx context.Context, identifier, channel, code string) error {
	payload := smsRequest{
		To:      identifier,
		Message: fmt.Sprintf("Your verification code is %s. It expires in a few minutes.", code),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		logger.Error(fmt.Sprintf("SMS provider request failed for %s", identifier), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("SMS API returned non-OK status: " + resp.Status)
	}

	var apiResp smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return err
	}
	if !apiResp.Success {
		return fmt.Errorf("SMS provider rejected message: %s", apiResp.Error)
	}

	return nil
}
