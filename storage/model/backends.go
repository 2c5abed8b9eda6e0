package model

// Backends groups all storage interfaces used by the application.
// It provides a single struct that can be passed around instead of
// multiple return values for each storage backend.
type Backends struct {
	Owners              OwnerStore
	Consumers           ConsumerStore
	Entitlements        EntitlementStore
	Pools               PoolStore
	Products            ProductStore
	Contents            ContentStore
	ConsumerTypes       ConsumerTypeStore
	DistributorVersions DistributorVersionStore
	Cdns                CdnStore
	Certificates        CertificateStore
	ExporterMetadata    ExporterMetadataStore
	ImportRecords       ImportRecordStore
	Rules               RulesStore
	Jobs                JobStore
	Users               UsersStore
}
