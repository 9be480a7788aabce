package users

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByUsername retrieves the user matching the provided username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindInShop loads a user only when it belongs to shopID.
func (r *Repository) FindInShop(ctx context.Context, shopID, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND id = ?", shopID, id).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByShop returns the shop's accounts ordered by username.
func (r *Repository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.User, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("username ASC").
		Find(&rows).Error
	return rows, err
}

// UsernameTaken reports whether another account already uses username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	return r.exists(ctx, "username = ?", username, exclude)
}

// PhoneTaken reports whether another account already uses phone.
func (r *Repository) PhoneTaken(ctx context.Context, phone string, exclude uuid.UUID) (bool, error) {
	return r.exists(ctx, "phone = ?", phone, exclude)
}

func (r *Repository) exists(ctx context.Context, clause, value string, exclude uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where(clause, value)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update persists the editable columns of user.
func (r *Repository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"username":      user.Username,
			"email":         user.Email,
			"phone":         user.Phone,
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"role":          user.Role,
			"password_hash": user.PasswordHash,
			"is_active":     user.IsActive,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// AssignShop sets the user's shop.
func (r *Repository) AssignShop(ctx context.Context, id, shopID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("shop_id", shopID).Error
}

// Delete removes a user of shopID. Reports false when no row matched.
func (r *Repository) Delete(ctx context.Context, shopID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("shop_id = ? AND id = ?", shopID, id).
		Delete(&models.User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash swaps the stored hash, used when hashing costs change.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
