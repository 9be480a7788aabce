package plans

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service exposes the plan catalogue and tier lookups.
type Service interface {
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	SubscribeLink(ctx context.Context, code string, requester Requester) (string, error)
	ShopTier(ctx context.Context, shopID uuid.UUID) (enums.PlanTier, error)
	SetShopPlan(ctx context.Context, shopID uuid.UUID, tier string) (*models.Shop, error)
}

// Requester identifies who asked for a subscription link.
type Requester struct {
	Username string
	ShopName string
}

type service struct {
	repo         Repository
	contactPhone string
	currency     string
}

// NewService wires the plan service. contactPhone is the sales line that
// receives subscription requests.
func NewService(repo Repository, contactPhone, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	if strings.TrimSpace(contactPhone) == "" {
		return nil, fmt.Errorf("billing contact phone required")
	}
	return &service{repo: repo, contactPhone: strings.TrimPrefix(strings.TrimSpace(contactPhone), "+"), currency: currency}, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	return plans, nil
}

func (s *service) SubscribeLink(ctx context.Context, code string, requester Requester) (string, error) {
	tier, err := enums.ParsePlanTier(code)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan code")
	}
	plan, err := s.repo.FindPlanByCode(ctx, tier)
	if err != nil {
		if isNotFound(err) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}

	message := fmt.Sprintf("Hello, I am interested in the %s plan at %s %s.", plan.Name, plan.Price.StringFixed(0), s.currency)
	if requester.Username != "" {
		message += "\nUsername: " + requester.Username
	}
	if requester.ShopName != "" {
		message += "\nShop: " + requester.ShopName
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", s.contactPhone, url.QueryEscape(message)), nil
}

func (s *service) ShopTier(ctx context.Context, shopID uuid.UUID) (enums.PlanTier, error) {
	if shopID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}
	tier, err := s.repo.ShopTier(ctx, shopID)
	if err != nil {
		if isNotFound(err) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop plan")
	}
	return tier, nil
}

func (s *service) SetShopPlan(ctx context.Context, shopID uuid.UUID, tier string) (*models.Shop, error) {
	parsed, err := enums.ParsePlanTier(tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan")
	}
	shop, err := s.repo.UpdateShopTier(ctx, shopID, parsed)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop plan")
	}
	return shop, nil
}
