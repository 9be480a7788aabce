package shops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recentSalesLimit = 5

// Service exposes shop profile, ownership and dashboard operations.
type Service interface {
	ListOwned(ctx context.Context, ownerID, currentShopID uuid.UUID) ([]OwnedShop, error)
	Create(ctx context.Context, ownerID uuid.UUID, input CreateShopInput) (*ShopDTO, error)
	Get(ctx context.Context, shopID uuid.UUID) (*ShopDTO, error)
	Update(ctx context.Context, shopID uuid.UUID, input UpdateShopInput) (*ShopDTO, error)
	Dashboard(ctx context.Context, shopID uuid.UUID) (*Dashboard, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shops repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) ListOwned(ctx context.Context, ownerID, currentShopID uuid.UUID) ([]OwnedShop, error) {
	owned, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}
	ids := make([]uuid.UUID, 0, len(owned))
	for _, shop := range owned {
		ids = append(ids, shop.ID)
	}
	totals, err := s.repo.SalesTotals(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum shop sales")
	}

	out := make([]OwnedShop, 0, len(owned))
	for i := range owned {
		out = append(out, OwnedShop{
			ShopDTO:    FromModel(&owned[i]),
			TotalSales: totals[owned[i].ID],
			IsCurrent:  owned[i].ID == currentShopID,
		})
	}
	return out, nil
}

// Create opens an additional shop on the free plan. The owner switches to it
// through the auth switch-shop flow.
func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreateShopInput) (*ShopDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
	}
	shop := &models.Shop{
		Name:    name,
		OwnerID: ownerID,
		Plan:    enums.PlanFree,
		Address: trimmed(input.Address),
		Phone:   trimmed(input.Phone),
		Email:   trimmed(input.Email),
	}
	if err := s.repo.Create(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shop")
	}
	s.logg.Info(s.logg.WithShopID(s.logg.WithUserID(ctx, ownerID.String()), shop.ID.String()), "shop created")
	dto := FromModel(shop)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, shopID uuid.UUID) (*ShopDTO, error) {
	shop, err := s.load(ctx, shopID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(shop)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, shopID uuid.UUID, input UpdateShopInput) (*ShopDTO, error) {
	shop, err := s.load(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
		}
		shop.Name = name
	}
	if input.Address != nil {
		shop.Address = trimmed(input.Address)
	}
	if input.Phone != nil {
		shop.Phone = trimmed(input.Phone)
	}
	if input.Email != nil {
		shop.Email = trimmed(input.Email)
	}
	if err := s.repo.Update(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop")
	}
	dto := FromModel(shop)
	return &dto, nil
}

func (s *service) Dashboard(ctx context.Context, shopID uuid.UUID) (*Dashboard, error) {
	shop, err := s.load(ctx, shopID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.repo.SalesBetween(ctx, shopID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum today's sales")
	}
	products, low, err := s.repo.ProductCounts(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	recent, err := s.repo.RecentSales(ctx, shopID, recentSalesLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recent sales")
	}

	dash := &Dashboard{
		Shop:         FromModel(shop),
		TodaySales:   today,
		ProductCount: products,
		LowStock:     low,
		RecentSales:  make([]RecentSale, 0, len(recent)),
	}
	for _, sale := range recent {
		dash.RecentSales = append(dash.RecentSales, RecentSale{
			ID:            sale.ID,
			TotalAmount:   sale.TotalAmount,
			PaymentMethod: sale.PaymentMethod,
			CreatedAt:     sale.CreatedAt,
		})
	}
	return dash, nil
}

func (s *service) load(ctx context.Context, shopID uuid.UUID) (*models.Shop, error) {
	shop, err := s.repo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
	}
	return shop, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
