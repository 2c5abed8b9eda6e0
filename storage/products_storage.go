package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ProductsStorage implements the ProductStore interface
type ProductsStorage struct {
	db *gorm.DB
}

// Get returns the product with the passed id
func (s *ProductsStorage) Get(id string) (*model.Product, error) {
	var p model.Product
	if err := s.db.Where("id = ?", id).First(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "products: get failed")
	}
	return &p, nil
}

// GetMany returns the products with the passed ids keyed by id
func (s *ProductsStorage) GetMany(ids []string) (map[string]*model.Product, error) {
	out := make(map[string]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []model.Product
	if err := s.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "products: get many failed")
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// Upsert creates or replaces the passed products
func (s *ProductsStorage) Upsert(products []*model.Product) error {
	if len(products) == 0 {
		return nil
	}
	for _, p := range products {
		if p.Multiplier <= 0 {
			p.Multiplier = 1
		}
	}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(products).Error; err != nil {
		return errors.Wrap(err, "products: upsert failed")
	}
	return nil
}

// ContentsStorage implements the ContentStore interface
type ContentsStorage struct {
	db *gorm.DB
}

// GetMany returns the content records with the passed content ids keyed by id
func (s *ContentsStorage) GetMany(ids []string) (map[string]*model.Content, error) {
	out := make(map[string]*model.Content, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var contents []model.Content
	if err := s.db.Where("id IN ?", ids).Find(&contents).Error; err != nil {
		return nil, errors.Wrap(err, "contents: get many failed")
	}
	for i := range contents {
		out[contents[i].ID] = &contents[i]
	}
	return out, nil
}

// Upsert creates or updates content by content id
func (s *ContentsStorage) Upsert(contents []*model.Content) error {
	if len(contents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(contents))
	for _, c := range contents {
		ids = append(ids, c.ID)
	}
	existing, err := s.GetMany(ids)
	if err != nil {
		return err
	}
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			for _, c := range contents {
				if old, ok := existing[c.ID]; ok {
					c.UUID = old.UUID
					c.CreatedAt = old.CreatedAt
					if err := tx.Save(c).Error; err != nil {
						return errors.Wrap(err, "contents: update failed")
					}
					continue
				}
				c.UUID = newID()
				if err := tx.Create(c).Error; err != nil {
					return errors.Wrap(err, "contents: create failed")
				}
			}
			return nil
		},
	)
}
