package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/PagerDuty/go-pagerduty"
)

// PagerDutyPager raises critical incidents through the Events API v2.
type PagerDutyPager struct {
	client     *pagerduty.Client
	routingKey string
	source     string
}

// NewPagerDutyPager needs the integration routing key, not a REST API
// token. The source names the bridge instance in the incident.
func NewPagerDutyPager(routingKey, source string, opts ...pagerduty.ClientOptions) (*PagerDutyPager, error) {
	if routingKey == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	return &PagerDutyPager{
		client:     pagerduty.NewClient("", opts...),
		routingKey: routingKey,
		source:     source,
	}, nil
}

func (p *PagerDutyPager) Page(ctx context.Context, summary string, details map[string]interface{}) error {
	event := &pagerduty.V2Event{
		RoutingKey: p.routingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:  summary,
			Source:   p.source,
			Severity: "critical",
			Details:  details,
		},
	}
	resp, err := p.client.ManageEventWithContext(ctx, event)
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("pagerduty event not accepted: %s", resp.Message)
	}
	return nil
}
