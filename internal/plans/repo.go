package plans

import (
	"context"
	"errors"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the plan catalogue and the tier assigned to each shop.
type Repository interface {
	ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	FindPlanByCode(ctx context.Context, code enums.PlanTier) (*models.SubscriptionPlan, error)
	ShopTier(ctx context.Context, shopID uuid.UUID) (enums.PlanTier, error)
	UpdateShopTier(ctx context.Context, shopID uuid.UUID, tier enums.PlanTier) (*models.Shop, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListPlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Order("price ASC").Order("code ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindPlanByCode(ctx context.Context, code enums.PlanTier) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ShopTier(ctx context.Context, shopID uuid.UUID) (enums.PlanTier, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Select("id", "plan").Where("id = ?", shopID).First(&shop).Error; err != nil {
		return "", err
	}
	return shop.Plan, nil
}

func (r *repository) UpdateShopTier(ctx context.Context, shopID uuid.UUID, tier enums.PlanTier) (*models.Shop, error) {
	res := r.db.WithContext(ctx).Model(&models.Shop{}).Where("id = ?", shopID).Update("plan", tier)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
