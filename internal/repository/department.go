package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"inteliroute/internal/model"
)

// DepartmentRepository reads and administers tenant routing targets.
type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// ListByTenant returns all departments of a tenant, enabled or not,
// ordered by name. The routing worker filters enabled rows itself.
func (r *DepartmentRepository) ListByTenant(ctx context.Context, tenantID uint) ([]model.Department, error) {
	var deps []model.Department
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name").
		Find(&deps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list departments for tenant %d: %w", tenantID, result.Error)
	}
	return deps, nil
}

// GetByID returns a department or (nil, nil) when absent.
func (r *DepartmentRepository) GetByID(ctx context.Context, id uint) (*model.Department, error) {
	var d model.Department
	result := r.db.WithContext(ctx).First(&d, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get department %d: %w", id, result.Error)
	}
	return &d, nil
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, d *model.Department) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

// Update persists name, routing email and enabled flag.
func (r *DepartmentRepository) Update(ctx context.Context, d *model.Department) error {
	result := r.db.WithContext(ctx).
		Model(d).
		Select("name", "routing_email", "enabled").
		Updates(d)
	if result.Error != nil {
		return fmt.Errorf("failed to update department %d: %w", d.ID, result.Error)
	}
	return nil
}

// SetEnabled flips the enabled flag for one department.
func (r *DepartmentRepository) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to set department enabled flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountEnabled returns the number of enabled departments across all tenants.
func (r *DepartmentRepository) CountEnabled(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&model.Department{}).
		Where("enabled = ?", true).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count enabled departments: %w", result.Error)
	}
	return count, nil
}
