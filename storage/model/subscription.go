package model

import (
	"time"
)

// Subscription is built from an imported entitlement and handed to the pool
// refresher. ID is freshly generated unless reconciliation matched the
// subscription to an existing pool, in which case it carries that pool's
// subscription id.
type Subscription struct {
	ID                        string
	UpstreamPoolID            string
	UpstreamEntitlementID     string
	UpstreamConsumerID        string
	OwnerID                   string
	ProductID                 string
	DerivedProductID          string
	ProvidedProductIDs        []string
	DerivedProvidedProductIDs []string
	Branding                  []Branding
	Quantity                  int64
	StartDate                 time.Time
	EndDate                   *time.Time
	AccountNumber             string
	ContractNumber            string
	OrderNumber               string
	Certificate               *SubscriptionCertificate
	CdnLabel                  string
}

// ActiveAt reports whether the subscription has not ended at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s.EndDate == nil || s.EndDate.After(t)
}
