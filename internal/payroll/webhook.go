package payroll

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RegisterCard notifies the payroll webhook that a card was assigned to an
// employee. The webhook is a legacy GET endpoint taking both values as
// query parameters.
func (c *Client) RegisterCard(ctx context.Context, webhookURL, identifier, card string) error {
	if webhookURL == "" {
		return fmt.Errorf("payroll webhook URL not configured")
	}
	identifier = strings.TrimSpace(identifier)
	card = strings.TrimSpace(card)
	if identifier == "" || card == "" {
		return fmt.Errorf("identifier and card are required")
	}

	endpoint, err := url.Parse(webhookURL)
	if err != nil {
		return fmt.Errorf("parse webhook URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("codigo", identifier)
	query.Set("tarjeta", card)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call card webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("card webhook returned status %d", resp.StatusCode)
	}
	return nil
}
