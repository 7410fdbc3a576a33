package repository

import (
	"context"

	"gorm.io/gorm"

	"library/internal/model"
)

// AuthorRepository defines author persistence operations.
type AuthorRepository interface {
	Create(ctx context.Context, author *model.Author) error
	Update(ctx context.Context, author *model.Author) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Author, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Author, error)
	FindByName(ctx context.Context, name string) (*model.Author, error)
	List(ctx context.Context, filter AuthorFilter) ([]model.Author, int64, error)
}

type authorRepository struct {
	db *gorm.DB
}

// NewAuthorRepository creates a new author repository.
func NewAuthorRepository(db *gorm.DB) AuthorRepository {
	return &authorRepository{db: db}
}

// Create creates a new author.
func (r *authorRepository) Create(ctx context.Context, author *model.Author) error {
	return r.db.WithContext(ctx).Create(author).Error
}

// Update updates an existing author.
func (r *authorRepository) Update(ctx context.Context, author *model.Author) error {
	return r.db.WithContext(ctx).Omit("Books").Save(author).Error
}

// Delete removes an author and its book links. Books stay in the catalog.
func (r *authorRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author := model.Author{ID: id}
		res := tx.Select("Books").Delete(&author)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindByID finds an author by ID.
func (r *authorRepository) FindByID(ctx context.Context, id uint) (*model.Author, error) {
	var author model.Author
	if err := r.db.WithContext(ctx).First(&author, id).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// FindByIDs returns the authors whose IDs are listed; missing IDs are skipped.
func (r *authorRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Author, error) {
	authors := []model.Author{}
	if len(ids) == 0 {
		return authors, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name").Find(&authors).Error; err != nil {
		return nil, err
	}
	return authors, nil
}

// FindByName finds the first author with exactly this name.
func (r *authorRepository) FindByName(ctx context.Context, name string) (*model.Author, error) {
	var author model.Author
	if err := r.db.WithContext(ctx).Where("name = ?", name).Order("id").First(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// List lists authors ordered by name.
func (r *authorRepository) List(ctx context.Context, filter AuthorFilter) ([]model.Author, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Author{})
		if filter.Search != "" {
			q = q.Where(like("name"), likePattern(filter.Search))
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var authors []model.Author
	if err := filter.Page.apply(query()).Order("name").Order("id").Find(&authors).Error; err != nil {
		return nil, 0, err
	}
	return authors, total, nil
}
