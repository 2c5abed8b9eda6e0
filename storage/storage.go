package storage

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.Owner{},
	&model.CertificateSerial{},
	&model.IdentityCertificate{},
	&model.UpstreamConsumer{},
	&model.Consumer{},
	&model.SubscriptionCertificate{},
	&model.ProductCertificate{},
	&model.Product{},
	&model.Content{},
	&model.Pool{},
	&model.Entitlement{},
	&model.EntitlementCertificate{},
	&model.ConsumerType{},
	&model.DistributorVersion{},
	&model.Cdn{},
	&model.Rules{},
	&model.ExporterMetadata{},
	&model.ImportRecord{},
	&model.JobStatus{},
	&model.User{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate the schemas
	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Fill user hash params with defaults if zero values
	params := config.UsersHash
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// Backends returns all stores bound to the storage's connection pool
func (s *Storage) Backends() model.Backends {
	return model.Backends{
		Owners:              s.OwnersStorage(),
		Consumers:           s.ConsumersStorage(),
		Entitlements:        s.EntitlementsStorage(),
		Pools:               s.PoolsStorage(),
		Products:            s.ProductsStorage(),
		Contents:            s.ContentsStorage(),
		ConsumerTypes:       s.ConsumerTypesStorage(),
		DistributorVersions: s.DistributorVersionsStorage(),
		Cdns:                s.CdnsStorage(),
		Certificates:        s.CertificatesStorage(),
		ExporterMetadata:    s.ExporterMetadataStorage(),
		ImportRecords:       s.ImportRecordsStorage(),
		Rules:               s.RulesStorage(),
		Jobs:                s.JobsStorage(),
		Users:               s.UsersStorage(),
	}
}

// Transaction runs fn with backends bound to a single database
// transaction. The transaction is committed if fn returns nil and rolled
// back otherwise.
func (s *Storage) Transaction(ctx context.Context, fn func(tx model.Backends) error) error {
	return s.db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			scoped := &Storage{
				db:         tx,
				userParams: s.userParams,
			}
			return fn(scoped.Backends())
		},
	)
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "storage: close failed")
	}
	return sqlDB.Close()
}

// OwnersStorage returns an OwnersStorage
func (s *Storage) OwnersStorage() *OwnersStorage {
	return &OwnersStorage{db: s.db}
}

// ConsumersStorage returns a ConsumersStorage
func (s *Storage) ConsumersStorage() *ConsumersStorage {
	return &ConsumersStorage{db: s.db}
}

// EntitlementsStorage returns an EntitlementsStorage
func (s *Storage) EntitlementsStorage() *EntitlementsStorage {
	return &EntitlementsStorage{db: s.db}
}

// PoolsStorage returns a PoolsStorage
func (s *Storage) PoolsStorage() *PoolsStorage {
	return &PoolsStorage{db: s.db}
}

// ProductsStorage returns a ProductsStorage
func (s *Storage) ProductsStorage() *ProductsStorage {
	return &ProductsStorage{db: s.db}
}

// ContentsStorage returns a ContentsStorage
func (s *Storage) ContentsStorage() *ContentsStorage {
	return &ContentsStorage{db: s.db}
}

// ConsumerTypesStorage returns a ConsumerTypesStorage
func (s *Storage) ConsumerTypesStorage() *ConsumerTypesStorage {
	return &ConsumerTypesStorage{db: s.db}
}

// DistributorVersionsStorage returns a DistributorVersionsStorage
func (s *Storage) DistributorVersionsStorage() *DistributorVersionsStorage {
	return &DistributorVersionsStorage{db: s.db}
}

// CdnsStorage returns a CdnsStorage
func (s *Storage) CdnsStorage() *CdnsStorage {
	return &CdnsStorage{db: s.db}
}

// CertificatesStorage returns a CertificatesStorage
func (s *Storage) CertificatesStorage() *CertificatesStorage {
	return &CertificatesStorage{db: s.db}
}

// ExporterMetadataStorage returns an ExporterMetadataStorage
func (s *Storage) ExporterMetadataStorage() *ExporterMetadataStorage {
	return &ExporterMetadataStorage{db: s.db}
}

// ImportRecordsStorage returns an ImportRecordsStorage
func (s *Storage) ImportRecordsStorage() *ImportRecordsStorage {
	return &ImportRecordsStorage{db: s.db}
}

// RulesStorage returns a RulesStorage
func (s *Storage) RulesStorage() *RulesStorage {
	return &RulesStorage{db: s.db}
}

// JobsStorage returns a JobsStorage
func (s *Storage) JobsStorage() *JobsStorage {
	return &JobsStorage{db: s.db}
}

// Users storage is implemented in users_storage.go
