package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const requestTimeout = 30 * time.Second

func newClient() *resty.Client {
	return resty.New().SetTimeout(requestTimeout)
}

// post sends a JSON body with auth headers and fails on any non-2xx status.
func post(ctx context.Context, client *resty.Client, endpoint string, body any, auth map[string]string) error {
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	for k, v := range auth {
		req.SetHeader(k, v)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("post %s: status %d: %s", endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

// IssueTracker files an issue from the extracted title and description.
type IssueTracker struct {
	client *resty.Client
}

func NewIssueTracker() *IssueTracker {
	return &IssueTracker{client: newClient()}
}

func (t *IssueTracker) Execute(ctx context.Context, endpoint string, payload map[string]string, auth map[string]string) error {
	body := map[string]string{
		"title":       payload["title"],
		"description": payload["description"],
	}
	return post(ctx, t.client, endpoint, body, auth)
}

// EmailSender sends a message through an email-service endpoint.
type EmailSender struct {
	client *resty.Client
}

func NewEmailSender() *EmailSender {
	return &EmailSender{client: newClient()}
}

func (s *EmailSender) Execute(ctx context.Context, endpoint string, payload map[string]string, auth map[string]string) error {
	body := map[string]string{
		"subject":   payload["subject"],
		"body":      payload["body"],
		"recipient": payload["recipient"],
	}
	return post(ctx, s.client, endpoint, body, auth)
}

// Webhook posts the extracted inputs verbatim to a user-defined endpoint.
type Webhook struct {
	client *resty.Client
}

func NewWebhook() *Webhook {
	return &Webhook{client: newClient()}
}

func (w *Webhook) Execute(ctx context.Context, endpoint string, payload map[string]string, auth map[string]string) error {
	return post(ctx, w.client, endpoint, payload, auth)
}

var (
	_ Executor = (*IssueTracker)(nil)
	_ Executor = (*EmailSender)(nil)
	_ Executor = (*Webhook)(nil)
)
