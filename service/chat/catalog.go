package chat

import (
	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

// gormCatalog backs the dialogue's doctor lists with the database.
type gormCatalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *gormCatalog {
	return &gormCatalog{db: db}
}

func (c *gormCatalog) All() ([]models.Doctor, error) {
	var doctors []models.Doctor
	err := c.db.Preload("Specialization").
		Order("last_name, first_name").
		Find(&doctors).Error
	return doctors, err
}

func (c *gormCatalog) BySpecialization(name string) ([]models.Doctor, error) {
	var doctors []models.Doctor
	err := c.db.
		Joins("JOIN specializations ON specializations.id = doctors.specialization_id").
		Where("specializations.name ILIKE ?", "%"+name+"%").
		Preload("Specialization").
		Order("last_name, first_name").
		Find(&doctors).Error
	return doctors, err
}
