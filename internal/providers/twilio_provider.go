package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// SMSProvider sends text messages and places voice calls.
type SMSProvider interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
	PlaceCall(ctx context.Context, to, message string) (string, error)
}

// TwilioProvider implements SMSProvider via the Twilio REST API
type TwilioProvider struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	logger     *logrus.Logger
}

// NewTwilioProvider creates a new Twilio provider
func NewTwilioProvider(accountSID, authToken, from string, logger *logrus.Logger) *TwilioProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{},
		logger:     logger,
	}
}

// SendSMS sends an SMS and returns the Twilio message SID
func (p *TwilioProvider) SendSMS(ctx context.Context, to, body string) (string, error) {
	urlStr := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", p.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", p.from)
	data.Set("Body", body)

	twilioResp, statusCode, err := p.post(ctx, urlStr, data)
	if err != nil {
		return "", err
	}

	if statusCode >= 200 && statusCode < 300 {
		return twilioResp.SID, nil
	}

	errorMsg := fmt.Sprintf("Twilio API error: %d", statusCode)
	if twilioResp.Message != "" {
		errorMsg = fmt.Sprintf("%s - %s", errorMsg, twilioResp.Message)
	}
	return "", fmt.Errorf("%s", errorMsg)
}

// PlaceCall places an outbound voice call that reads the message aloud
// and returns the call SID
func (p *TwilioProvider) PlaceCall(ctx context.Context, to, message string) (string, error) {
	urlStr := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Calls.json", p.accountSID)

	twiml := fmt.Sprintf("<Response><Say voice=\"alice\">%s</Say></Response>", escapeXML(message))

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", p.from)
	data.Set("Twiml", twiml)

	twilioResp, statusCode, err := p.post(ctx, urlStr, data)
	if err != nil {
		return "", err
	}

	if statusCode >= 200 && statusCode < 300 {
		return twilioResp.SID, nil
	}

	errorMsg := fmt.Sprintf("Twilio API error: %d", statusCode)
	if twilioResp.Message != "" {
		errorMsg = fmt.Sprintf("%s - %s", errorMsg, twilioResp.Message)
	}
	return "", fmt.Errorf("%s", errorMsg)
}

func (p *TwilioProvider) post(ctx context.Context, urlStr string, data url.Values) (*TwilioResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", urlStr, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var twilioResp TwilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&twilioResp); err != nil {
		return nil, resp.StatusCode, err
	}
	return &twilioResp, resp.StatusCode, nil
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;", "'", "&apos;")
	return r.Replace(s)
}

// TwilioResponse represents Twilio API response
type TwilioResponse struct {
	SID         string `json:"sid"`
	DateCreated string `json:"date_created"`
	AccountSID  string `json:"account_sid"`
	To          string `json:"to"`
	From        string `json:"from"`
	Status      string `json:"status"`
	Direction   string `json:"direction"`
	APIVersion  string `json:"api_version"`
	Price       string `json:"price"`
	PriceUnit   string `json:"price_unit"`
	URI         string `json:"uri"`

	// Error response fields
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// MockSMSProvider logs instead of calling Twilio. Used in development
// where no Twilio credentials are configured.
type MockSMSProvider struct {
	logger *logrus.Logger
}

func NewMockSMSProvider(logger *logrus.Logger) *MockSMSProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &MockSMSProvider{logger: logger}
}

func (p *MockSMSProvider) SendSMS(ctx context.Context, to, body string) (string, error) {
	p.logger.WithFields(logrus.Fields{
		"to":   to,
		"body": body,
	}).Info("Mock SMS sent")
	return "mock-sms", nil
}

func (p *MockSMSProvider) PlaceCall(ctx context.Context, to, message string) (string, error) {
	p.logger.WithFields(logrus.Fields{
		"to":      to,
		"message": message,
	}).Info("Mock call placed")
	return "mock-call", nil
}
