package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// PoolsStorage implements the PoolStore interface
type PoolsStorage struct {
	db *gorm.DB
}

// Get returns the pool with the passed id
func (s *PoolsStorage) Get(id string) (*model.Pool, error) {
	var pool model.Pool
	if err := s.db.Preload("Certificate").Where("id = ?", id).First(&pool).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "pools: get failed")
	}
	return &pool, nil
}

// ListByOwnerAndType lists the pools of an owner with the passed type in creation order
func (s *PoolsStorage) ListByOwnerAndType(ownerID string, poolType model.PoolType) ([]model.Pool, error) {
	var pools []model.Pool
	err := s.db.Preload("Certificate").
		Where("owner_id = ? AND type = ?", ownerID, poolType).
		Order("created_at, id").
		Find(&pools).Error
	if err != nil {
		return nil, errors.Wrap(err, "pools: list failed")
	}
	return pools, nil
}

// ListFromManifest lists the pools of an owner that carry an upstream pool id
func (s *PoolsStorage) ListFromManifest(ownerID string) ([]model.Pool, error) {
	var pools []model.Pool
	err := s.db.Where("owner_id = ? AND upstream_pool_id <> ''", ownerID).
		Order("created_at, id").
		Find(&pools).Error
	if err != nil {
		return nil, errors.Wrap(err, "pools: list failed")
	}
	return pools, nil
}

// Save creates or updates a pool. The certificate is referenced by id only.
func (s *PoolsStorage) Save(pool *model.Pool) error {
	if pool.ID == "" {
		pool.ID = newID()
	}
	if pool.Type == "" {
		pool.Type = model.PoolTypeNormal
	}
	if pool.Certificate != nil {
		pool.CertificateID = &pool.Certificate.ID
	}
	if err := s.db.Omit(clause.Associations).Save(pool).Error; err != nil {
		return errors.Wrap(err, "pools: save failed")
	}
	return nil
}

// DeleteBySubscription removes all pools of a subscription together with
// the entitlements granted from them
func (s *PoolsStorage) DeleteBySubscription(ownerID, subscriptionID string) (int64, error) {
	return s.deletePools(
		s.db.Model(&model.Pool{}).Where("owner_id = ? AND subscription_id = ?", ownerID, subscriptionID),
	)
}

// DeleteFromManifest removes all pools of an owner that were created from
// a manifest together with the entitlements granted from them
func (s *PoolsStorage) DeleteFromManifest(ownerID string) (int64, error) {
	return s.deletePools(
		s.db.Model(&model.Pool{}).Where("owner_id = ? AND upstream_pool_id <> ''", ownerID),
	)
}

func (s *PoolsStorage) deletePools(query *gorm.DB) (int64, error) {
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return 0, errors.Wrap(err, "pools: delete failed")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.Transaction(
		func(tx *gorm.DB) error {
			entitlements := tx.Model(&model.Entitlement{}).Select("id").Where("pool_id IN ?", ids)
			if err := tx.Where("entitlement_id IN (?)", entitlements).
				Delete(&model.EntitlementCertificate{}).Error; err != nil {
				return err
			}
			if err := tx.Where("pool_id IN ?", ids).Delete(&model.Entitlement{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", ids).Delete(&model.Pool{})
			if res.Error != nil {
				return res.Error
			}
			deleted = res.RowsAffected
			return nil
		},
	)
	if err != nil {
		return 0, errors.Wrap(err, "pools: delete failed")
	}
	return deleted, nil
}
