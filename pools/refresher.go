// Package pools materialises pools from the subscriptions of an imported
// manifest.
package pools

import (
	"fmt"

	arrays "github.com/adam-hanna/arrayOperations"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tideland.dev/go/slices"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Result summarises one refresh
type Result struct {
	Created int   `json:"created"`
	Updated int   `json:"updated"`
	Deleted int64 `json:"deleted"`
}

func (r Result) String() string {
	return fmt.Sprintf("%d created, %d updated, %d deleted", r.Created, r.Updated, r.Deleted)
}

// Refresh brings the manifest pools of an owner in line with subs.
// Subscriptions whose id matches existing pools update them in place, new
// ones get a new pool, and pools of subscriptions that are no longer present
// are deleted together with their entitlements.
func Refresh(b model.Backends, ownerID string, subs []*model.Subscription) (Result, error) {
	var res Result
	existing, err := b.Pools.ListFromManifest(ownerID)
	if err != nil {
		return res, errors.Wrap(err, "pools: refresh failed")
	}
	bySubscription := make(map[string]*model.Pool)
	var existingIDs []string
	for i := range existing {
		p := &existing[i]
		if _, ok := bySubscription[p.SubscriptionID]; !ok {
			existingIDs = append(existingIDs, p.SubscriptionID)
		}
		if p.Type == model.PoolTypeNormal || bySubscription[p.SubscriptionID] == nil {
			bySubscription[p.SubscriptionID] = p
		}
	}
	incomingIDs := make([]string, 0, len(subs))
	for _, s := range subs {
		incomingIDs = append(incomingIDs, s.ID)
	}

	for _, id := range slices.Subtract(existingIDs, incomingIDs) {
		n, err := b.Pools.DeleteBySubscription(ownerID, id)
		if err != nil {
			return res, errors.Wrap(err, "pools: refresh failed")
		}
		log.WithFields(log.Fields{"owner": ownerID, "subscription": id}).Debug("removed pools of stale subscription")
		res.Deleted += n
	}
	kept := make(map[string]bool)
	for _, id := range arrays.Intersect(existingIDs, incomingIDs) {
		kept[id] = true
	}

	products, err := b.Products.GetMany(productIDs(subs))
	if err != nil {
		return res, errors.Wrap(err, "pools: refresh failed")
	}
	for _, s := range subs {
		if s.Certificate != nil {
			if err = b.Certificates.SaveSubscriptionCertificate(s.Certificate); err != nil {
				return res, errors.Wrap(err, "pools: refresh failed")
			}
		}
		pool := &model.Pool{}
		if kept[s.ID] {
			pool = bySubscription[s.ID]
			res.Updated++
		} else {
			res.Created++
		}
		apply(pool, ownerID, s, products[s.ProductID])
		if err = b.Pools.Save(pool); err != nil {
			return res, errors.Wrap(err, "pools: refresh failed")
		}
	}
	log.WithField("owner", ownerID).Infof("refreshed pools: %s", res)
	return res, nil
}

func productIDs(subs []*model.Subscription) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ProductID)
	}
	return slices.Unique(ids)
}

func apply(pool *model.Pool, ownerID string, s *model.Subscription, product *model.Product) {
	pool.OwnerID = ownerID
	pool.Type = model.PoolTypeNormal
	pool.SubscriptionID = s.ID
	pool.ProductID = s.ProductID
	pool.DerivedProductID = s.DerivedProductID
	pool.ProvidedProductIDs = s.ProvidedProductIDs
	pool.DerivedProvidedProductIDs = s.DerivedProvidedProductIDs
	pool.Quantity = s.Quantity * product.EffectiveMultiplier()
	pool.StartDate = s.StartDate
	pool.EndDate = s.EndDate
	pool.UpstreamPoolID = s.UpstreamPoolID
	pool.UpstreamEntitlementID = s.UpstreamEntitlementID
	pool.UpstreamConsumerID = s.UpstreamConsumerID
	pool.AccountNumber = s.AccountNumber
	pool.ContractNumber = s.ContractNumber
	pool.OrderNumber = s.OrderNumber
	pool.Branding = s.Branding
	pool.CdnLabel = s.CdnLabel
	pool.Certificate = s.Certificate
	if s.Certificate == nil {
		pool.CertificateID = nil
	}
}
