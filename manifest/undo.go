package manifest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// UndoImport removes everything the last manifest import brought to the
// owner: the pools created from the manifest, the upstream consumer binding
// and the metadata tracking record. A DELETE import record naming principal
// is written.
func (i *Importer) UndoImport(ctx context.Context, ownerKey, principal string) (*model.ImportRecord, error) {
	var record *model.ImportRecord
	err := i.store.Transaction(
		ctx, func(tx model.Backends) error {
			owner, err := tx.Owners.Get(ownerKey)
			if err != nil {
				return err
			}
			if owner == nil {
				return model.NotFoundErrorFmt("owner not found: %s", ownerKey)
			}
			metadata, err := tx.ExporterMetadata.GetByTypeAndOwner(model.ExporterMetadataTypePerUser, owner.ID)
			if err != nil {
				return err
			}
			if metadata == nil {
				return model.NotFoundErrorFmt("No import found for owner %s", owner.Key)
			}

			deleted, err := tx.Pools.DeleteFromManifest(owner.ID)
			if err != nil {
				return err
			}
			removed, err := tx.Owners.ClearUpstreamConsumer(owner.ID)
			if err != nil {
				return err
			}
			if err = tx.ExporterMetadata.Delete(metadata); err != nil {
				return err
			}

			record = &model.ImportRecord{OwnerID: owner.ID}
			record.RecordStatus(model.ImportStatusDelete, fmt.Sprintf("Subscriptions deleted by %s", principal))
			record.SetUpstreamConsumer(upstreamSnapshot(removed))
			if err = tx.ImportRecords.Create(record); err != nil {
				return err
			}
			log.WithFields(
				log.Fields{
					"owner":     owner.Key,
					"principal": principal,
					"pools":     deleted,
				},
			).Info("undid manifest import")
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
