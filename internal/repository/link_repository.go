package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/encurtaweb/encurtador/internal/models"
)

// LinkRepository is the storage capability the service and worker depend on.
// Any backend implementing these three methods is substitutable; the clicks
// column is only ever written through Update, by the click-sync worker.
type LinkRepository interface {
	Create(link *models.Link) error
	FindByCode(code string) (*models.Link, error)
	Update(id uint, changes map[string]any) (*models.Link, error)
}

// GormLinkRepository est l'implémentation de LinkRepository utilisant GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository crée et retourne une nouvelle instance de GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// Create insère un nouveau lien dans la base de données.
func (r *GormLinkRepository) Create(link *models.Link) error {
	if err := r.db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// FindByCode récupère un lien de la base de données en utilisant son code.
// Returns gorm.ErrRecordNotFound untouched so callers can branch on it.
func (r *GormLinkRepository) FindByCode(code string) (*models.Link, error) {
	var link models.Link
	if err := r.db.Where("code = ?", code).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// Update applies a partial update to the link with the given id and returns
// the refreshed record.
func (r *GormLinkRepository) Update(id uint, changes map[string]any) (*models.Link, error) {
	if err := r.db.Model(&models.Link{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update link %d: %w", id, err)
	}
	var link models.Link
	if err := r.db.First(&link, id).Error; err != nil {
		return nil, fmt.Errorf("failed to reload link %d: %w", id, err)
	}
	return &link, nil
}
