// Package reconcile maps freshly imported subscriptions onto the pools an
// owner already has, so that a re-import reuses existing pools instead of
// destroying and regenerating them.
package reconcile

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Reconciler reconciles imported subscriptions against stored pools.
type Reconciler struct {
	Pools    model.PoolStore
	Products model.ProductStore
}

// New returns a Reconciler reading from the passed backends.
func New(b model.Backends) *Reconciler {
	return &Reconciler{
		Pools:    b.Pools,
		Products: b.Products,
	}
}

// Reconcile assigns the subscription id of a matching existing pool to each
// subscription that can reuse one. Unmatched subscriptions keep their id.
func (r *Reconciler) Reconcile(ownerID string, subs []*model.Subscription) error {
	pools, err := r.Pools.ListByOwnerAndType(ownerID, model.PoolTypeNormal)
	if err != nil {
		return errors.Wrap(err, "reconcile: listing pools failed")
	}
	var productIDs []string
	for _, p := range pools {
		productIDs = append(productIDs, p.ProductID)
	}
	products, err := r.Products.GetMany(productIDs)
	if err != nil {
		return errors.Wrap(err, "reconcile: loading products failed")
	}
	matched := Match(subs, pools, products)
	log.WithFields(
		log.Fields{
			"owner":         ownerID,
			"subscriptions": len(subs),
			"pools":         len(pools),
			"matched":       matched,
		},
	).Debug("reconciled subscriptions")
	return nil
}

type candidate struct {
	pool *model.Pool
	// entitlementKey is the upstream entitlement id or a placeholder that
	// never equals a real id
	entitlementKey string
	quantity       int64
}

// Match reconciles subs against pools in place and returns the number of
// subscriptions that were matched. Only NORMAL pools created from a manifest
// are considered, and only within the same upstream pool id. products
// resolves the multiplier of a pool's product; missing products count as
// multiplier 1.
func Match(subs []*model.Subscription, pools []model.Pool, products map[string]*model.Product) int {
	groups := make(map[string][]*candidate)
	placeholders := 0
	for i := range pools {
		p := &pools[i]
		if p.Type != model.PoolTypeNormal || p.UpstreamPoolID == "" {
			continue
		}
		key := p.UpstreamEntitlementID
		if key == "" {
			placeholders++
			key = placeholderKey(placeholders)
		}
		groups[p.UpstreamPoolID] = append(
			groups[p.UpstreamPoolID], &candidate{
				pool:           p,
				entitlementKey: key,
				quantity:       p.Quantity / products[p.ProductID].EffectiveMultiplier(),
			},
		)
	}

	incoming := make(map[string][]*model.Subscription)
	var order []string
	for _, s := range subs {
		if _, ok := incoming[s.UpstreamPoolID]; !ok {
			order = append(order, s.UpstreamPoolID)
		}
		incoming[s.UpstreamPoolID] = append(incoming[s.UpstreamPoolID], s)
	}

	matched := 0
	for _, upstreamPoolID := range order {
		existing := groups[upstreamPoolID]
		if len(existing) == 0 {
			continue
		}
		matched += matchGroup(incoming[upstreamPoolID], existing)
	}
	return matched
}

func placeholderKey(n int) string {
	return "\x00placeholder-" + strconv.Itoa(n)
}

func matchGroup(subs []*model.Subscription, existing []*candidate) int {
	used := make([]bool, len(existing))
	done := make([]bool, len(subs))
	matched := 0
	assign := func(si, pi int) {
		subs[si].ID = existing[pi].pool.SubscriptionID
		used[pi] = true
		done[si] = true
		matched++
	}

	// entitlement id
	byEntitlement := make(map[string]int, len(existing))
	for i, c := range existing {
		byEntitlement[c.entitlementKey] = i
	}
	for si, s := range subs {
		if s.UpstreamEntitlementID == "" {
			continue
		}
		if pi, ok := byEntitlement[s.UpstreamEntitlementID]; ok && !used[pi] {
			assign(si, pi)
		}
	}

	// exact quantity, first pool in encountered order
	for si, s := range subs {
		if done[si] {
			continue
		}
		for pi, c := range existing {
			if !used[pi] && c.quantity == s.Quantity {
				assign(si, pi)
				break
			}
		}
	}

	// descending quantity, positional
	var restSubs, restPools []int
	for si := range subs {
		if !done[si] {
			restSubs = append(restSubs, si)
		}
	}
	for pi := range existing {
		if !used[pi] {
			restPools = append(restPools, pi)
		}
	}
	sort.SliceStable(
		restSubs, func(i, j int) bool {
			return subs[restSubs[i]].Quantity > subs[restSubs[j]].Quantity
		},
	)
	sort.SliceStable(
		restPools, func(i, j int) bool {
			return existing[restPools[i]].quantity > existing[restPools[j]].quantity
		},
	)
	for i := 0; i < len(restSubs) && i < len(restPools); i++ {
		assign(restSubs[i], restPools[i])
	}
	return matched
}
