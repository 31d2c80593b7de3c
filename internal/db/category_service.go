package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/balkashynov/tally/internal/models"
)

// CategoryService is the time category registry
type CategoryService struct {
	db  *gorm.DB
	log *slog.Logger
}

// Create stores a new, active category
func (s *CategoryService) Create(ctx context.Context, in models.CategoryInput) (*models.TimeCategory, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := invalid(in.Validate()); err != nil {
		return nil, err
	}

	category := models.TimeCategory{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, storageErr("create category", err)
	}
	s.log.Info("category created", "category_id", category.ID, "name", category.Name)
	return &category, nil
}

// Update changes name, description, color or the active flag
func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, patch models.CategoryPatch) (*models.TimeCategory, error) {
	var category models.TimeCategory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("category %s", id))
		}
		patch.Apply(&category)
		category.Name = strings.TrimSpace(category.Name)
		in := models.CategoryInput{Name: category.Name, Description: category.Description, Color: category.Color}
		if err := invalid(in.Validate()); err != nil {
			return err
		}
		return tx.Save(&category).Error
	})
	if err != nil {
		return nil, passThrough("update category", err)
	}
	return &category, nil
}

// Delete hard-deletes an unused category. A category referenced by any entry or
// live session is disabled instead, and disabled reports true.
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) (disabled bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.TimeCategory
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			return lookupErr(err, ErrNotFound, fmt.Sprintf("category %s", id))
		}

		var entries, sessions int64
		if err := tx.Model(&models.TimeEntry{}).Where("category_id = ?", id).Count(&entries).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TrackingSession{}).Where("category_id = ?", id).Count(&sessions).Error; err != nil {
			return err
		}

		if entries+sessions > 0 {
			disabled = true
			return tx.Model(&category).Update("active", false).Error
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		return false, passThrough("delete category", err)
	}
	s.log.Info("category removed", "category_id", id, "disabled", disabled)
	return disabled, nil
}

// Get returns one category, active or not
func (s *CategoryService) Get(ctx context.Context, id uuid.UUID) (*models.TimeCategory, error) {
	var category models.TimeCategory
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, ErrNotFound, fmt.Sprintf("category %s", id))
	}
	return &category, nil
}

// ListActive returns every active category ordered by name
func (s *CategoryService) ListActive(ctx context.Context) ([]models.TimeCategory, error) {
	categories := []models.TimeCategory{}
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&categories).Error; err != nil {
		return nil, storageErr("list categories", err)
	}
	return categories, nil
}

// ListAll returns one page of all categories, disabled included
func (s *CategoryService) ListAll(ctx context.Context, page models.Page) (models.PageResult[models.TimeCategory], error) {
	return listPage[models.TimeCategory](ctx, s.db, "list categories", page, "name, id", func(q *gorm.DB) *gorm.DB {
		return q
	})
}

// activeCategory loads a category that entries and sessions may reference
func activeCategory(tx *gorm.DB, id uuid.UUID) error {
	var category models.TimeCategory
	if err := tx.Select("id", "active").First(&category, "id = ?", id).Error; err != nil {
		return lookupErr(err, ErrNotFound, fmt.Sprintf("category %s", id))
	}
	if !category.Active {
		return invalidField("category_id", "category %s is disabled", id)
	}
	return nil
}
