package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// Provider is one transactional email API.
type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Send(ctx context.Context, email model.Email) error
}

type HTTPProviderConfig struct {
	Name          string
	BaseURL       string
	Path          string
	APIKey        string
	Timeout       time.Duration
	FailThreshold int
	CoolDown      time.Duration
}

// HTTPProvider posts the email as JSON with a bearer key, the request shape
// shared by Resend-style APIs.
type HTTPProvider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *Breaker
}

func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 3
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/emails"
	}
	return &HTTPProvider{
		name:     cfg.Name,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  NewBreaker(cfg.FailThreshold, cfg.CoolDown),
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.breaker.Ready() }
func (p *HTTPProvider) Acquire() bool { return p.breaker.Acquire() }

func (p *HTTPProvider) Send(ctx context.Context, email model.Email) error {
	if err := p.post(ctx, email); err != nil {
		p.breaker.Failure()
		return err
	}
	p.breaker.Success()
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, email model.Email) error {
	b, err := json.Marshal(email)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("provider=%s status=%d body=%s", p.name, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
