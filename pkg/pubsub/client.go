package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client hands out publishers and subscribers for the sales topic.
type Client struct {
	gc      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and refuses to start while any configured
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	gc, err := pubsub.NewClient(ctx, project, append(gcp.ClientOptions(), extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{gc: gc, project: project, cfg: cfg}

	if err := c.checkSubscriptions(ctx); err != nil {
		_ = gc.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":       project,
			"topic":         cfg.SalesTopic,
			"subscriptions": subscriptionNames(cfg),
		}), "pubsub client initialized")
	}
	return c, nil
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.SalesSubscription, cfg.AnalyticsSubscription} {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// checkSubscriptions reports every missing subscription at once.
func (c *Client) checkSubscriptions(ctx context.Context) error {
	names := subscriptionNames(c.cfg)
	if len(names) == 0 {
		return errNoSubscriptions
	}
	var errs error
	for _, name := range names {
		req := &pubsubpb.GetSubscriptionRequest{Subscription: c.resource(kindSubscription, name)}
		_, err := c.gc.SubscriptionAdminClient.GetSubscription(ctx, req)
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			errs = multierr.Append(errs, fmt.Errorf("subscription %q does not exist", name))
		default:
			errs = multierr.Append(errs, fmt.Errorf("checking subscription %q: %w", name, err))
		}
	}
	return errs
}

// resource expands a short ID to projects/<project>/<kind>/<id>. Fully
// qualified names pass through untouched.
func (c *Client) resource(kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || c.project == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	return "projects/" + c.project + "/" + kind + "/" + name
}

// Subscription accepts a short ID or full resource name. Nil when the name
// does not resolve.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.gc == nil {
		return nil
	}
	full := c.resource(kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.gc.Subscriber(full)
}

// SalesSubscription feeds the invoice worker.
func (c *Client) SalesSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.SalesSubscription)
}

// AnalyticsSubscription feeds the analytics worker; nil when unset.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.gc == nil {
		return nil
	}
	full := c.resource(kindTopic, name)
	if full == "" {
		return nil
	}
	return c.gc.Publisher(full)
}

// SalesPublisher publishes sale, stock and invoice events.
func (c *Client) SalesPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.SalesTopic)
}

// Ping re-runs the startup subscription check.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gc == nil {
		return errNotInitialized
	}
	return c.checkSubscriptions(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.gc == nil {
		return nil
	}
	return c.gc.Close()
}
