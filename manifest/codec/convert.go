package codec

import (
	"fmt"
	"strconv"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

func serialRecord(s *model.CertificateSerial) *SerialRecord {
	if s == nil {
		return nil
	}
	return &SerialRecord{
		ID:         s.ID,
		Serial:     s.ID,
		Expiration: s.Expiration,
		Collected:  s.Collected,
		Revoked:    s.Revoked,
		Created:    s.CreatedAt,
		Updated:    s.UpdatedAt,
	}
}

// NewSerial returns a fresh serial carrying over the expiration and
// collected state of the record's serial. The id is left for the store to
// assign.
func (r *CertificateRecord) NewSerial() *model.CertificateSerial {
	s := &model.CertificateSerial{}
	if r.Serial != nil {
		s.Expiration = r.Serial.Expiration
		s.Collected = r.Serial.Collected
	}
	return s
}

// IdentityCertificateRecord converts an identity certificate
func IdentityCertificateRecord(c *model.IdentityCertificate) *CertificateRecord {
	return &CertificateRecord{
		ID:      c.ID,
		Key:     c.Key,
		Cert:    c.Cert,
		Serial:  serialRecord(c.Serial),
		Created: c.CreatedAt,
		Updated: c.UpdatedAt,
	}
}

func entitlementCertificateRecord(c *model.EntitlementCertificate) CertificateRecord {
	return CertificateRecord{
		ID:      c.ID,
		Key:     c.Key,
		Cert:    c.Cert,
		Serial:  serialRecord(c.Serial),
		Created: c.CreatedAt,
		Updated: c.UpdatedAt,
	}
}

// ConsumerTypeRecordOf converts a consumer type
func ConsumerTypeRecordOf(ct *model.ConsumerType) *ConsumerTypeRecord {
	if ct == nil {
		return nil
	}
	return &ConsumerTypeRecord{
		ID:       strconv.FormatUint(uint64(ct.ID), 10),
		Label:    ct.Label,
		Manifest: ct.Manifest,
	}
}

// Model converts the record into a consumer type
func (r *ConsumerTypeRecord) Model() *model.ConsumerType {
	return &model.ConsumerType{
		Label:    r.Label,
		Manifest: r.Manifest,
	}
}

// ConsumerRecordOf converts an exported consumer. The url prefixes are
// written as passed, nil meaning unknown.
func ConsumerRecordOf(c *model.Consumer, ct *model.ConsumerType, webURL, apiURL *string) *ConsumerRecord {
	r := &ConsumerRecord{
		UUID:              c.UUID,
		Name:              c.Name,
		Type:              ConsumerTypeRecordOf(ct),
		URLWeb:            webURL,
		URLAPI:            apiURL,
		ContentAccessMode: c.ContentAccessMode,
	}
	if r.Type == nil {
		r.Type = &ConsumerTypeRecord{Label: c.TypeLabel}
	}
	if c.Owner != nil {
		r.Owner = &OwnerRecord{
			ID:          c.Owner.ID,
			Key:         c.Owner.Key,
			DisplayName: c.Owner.DisplayName,
		}
	}
	return r
}

// UpstreamConsumer converts the record into the upstream consumer of an
// importing owner. An unset web url falls back to the meta web app prefix.
func (r *ConsumerRecord) UpstreamConsumer(meta *MetaRecord) *model.UpstreamConsumer {
	uc := &model.UpstreamConsumer{
		UUID:              r.UUID,
		Name:              r.Name,
		ContentAccessMode: r.ContentAccessMode,
	}
	if r.Type != nil {
		uc.TypeLabel = r.Type.Label
	}
	if r.URLWeb != nil {
		uc.WebURL = *r.URLWeb
	}
	if uc.WebURL == "" && meta != nil {
		uc.WebURL = meta.WebAppPrefix
	}
	if r.URLAPI != nil {
		uc.APIURL = *r.URLAPI
	}
	return uc
}

// EntitlementRecordOf converts an exported entitlement. products resolves
// names of provided products; unknown ids are written without a name.
func EntitlementRecordOf(e *model.Entitlement, owner *model.Owner, products map[string]*model.Product) *EntitlementRecord {
	r := &EntitlementRecord{
		ID:       e.ID,
		Quantity: e.Quantity,
	}
	if owner != nil {
		r.Owner = &OwnerRecord{ID: owner.ID, Key: owner.Key, DisplayName: owner.DisplayName}
	}
	if p := e.Pool; p != nil {
		r.StartDate = p.StartDate
		r.EndDate = p.EndDate
		r.Pool = &PoolRecord{
			ID:                      p.ID,
			Type:                    string(p.Type),
			ContractNumber:          p.ContractNumber,
			AccountNumber:           p.AccountNumber,
			OrderNumber:             p.OrderNumber,
			ProductID:               p.ProductID,
			DerivedProductID:        p.DerivedProductID,
			ProvidedProducts:        providedRecords(p.ProvidedProductIDs, products),
			DerivedProvidedProducts: providedRecords(p.DerivedProvidedProductIDs, products),
			Quantity:                p.Quantity,
			StartDate:               p.StartDate,
			EndDate:                 p.EndDate,
		}
		for _, b := range p.Branding {
			r.Pool.Branding = append(r.Pool.Branding, BrandingRecord(b))
		}
	}
	for i := range e.Certificates {
		r.Certificates = append(r.Certificates, entitlementCertificateRecord(&e.Certificates[i]))
	}
	return r
}

func providedRecords(ids []string, products map[string]*model.Product) []ProvidedProductRecord {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ProvidedProductRecord, 0, len(ids))
	for _, id := range ids {
		rec := ProvidedProductRecord{ProductID: id}
		if p, ok := products[id]; ok {
			rec.ProductName = p.Name
		}
		out = append(out, rec)
	}
	return out
}

// ProductIDs returns every product id the entitlement references: main,
// derived, provided and derived provided.
func (r *EntitlementRecord) ProductIDs() []string {
	if r.Pool == nil {
		return nil
	}
	ids := []string{r.Pool.ProductID}
	if r.Pool.DerivedProductID != "" {
		ids = append(ids, r.Pool.DerivedProductID)
	}
	for _, pp := range r.Pool.ProvidedProducts {
		ids = append(ids, pp.ProductID)
	}
	for _, pp := range r.Pool.DerivedProvidedProducts {
		ids = append(ids, pp.ProductID)
	}
	return ids
}

// ProductRecordOf converts an exported product with its content.
func ProductRecordOf(p *model.Product, contents map[string]*model.Content) *ProductRecord {
	r := &ProductRecord{
		ID:                 p.ID,
		Name:               p.Name,
		Multiplier:         p.EffectiveMultiplier(),
		DerivedProductID:   p.DerivedProductID,
		ProvidedProductIDs: append([]string(nil), p.ProvidedProductIDs...),
	}
	if len(p.Attributes) > 0 {
		r.Attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			r.Attributes[k] = fmt.Sprint(v)
		}
	}
	for _, pc := range p.Contents {
		c, ok := contents[pc.ContentID]
		if !ok {
			continue
		}
		r.ProductContent = append(
			r.ProductContent, ProductContentRecord{
				Content: ContentRecord{
					UUID:               c.UUID,
					ID:                 c.ID,
					Type:               c.Type,
					Label:              c.Label,
					Name:               c.Name,
					Vendor:             c.Vendor,
					ContentURL:         c.ContentURL,
					GPGURL:             c.GPGURL,
					RequiredTags:       c.RequiredTags,
					ReleaseVersion:     c.ReleaseVersion,
					Arches:             c.Arches,
					MetadataExpiration: c.MetadataExpiration,
					ModifiedProductIDs: append([]string(nil), c.ModifiedProductIDs...),
				},
				Enabled: pc.Enabled,
			},
		)
	}
	return r
}

// ContentIDs returns the content ids referenced by the product.
func (r *ProductRecord) ContentIDs() []string {
	ids := make([]string, 0, len(r.ProductContent))
	for _, pc := range r.ProductContent {
		ids = append(ids, pc.Content.ID)
	}
	return ids
}

// Model converts an imported product. The multiplier was applied upstream,
// so the product is stored with multiplier 1. Content is returned without
// its upstream uuid; the local store assigns its own.
func (r *ProductRecord) Model() (*model.Product, []*model.Content) {
	p := &model.Product{
		ID:                 r.ID,
		Name:               r.Name,
		Multiplier:         1,
		DerivedProductID:   r.DerivedProductID,
		ProvidedProductIDs: append([]string(nil), r.ProvidedProductIDs...),
	}
	if len(r.Attributes) > 0 {
		p.Attributes = make(map[string]any, len(r.Attributes))
		for k, v := range r.Attributes {
			p.Attributes[k] = v
		}
		if _, ok := p.Attributes[model.ProductAttributeMultiplier]; ok {
			p.Attributes[model.ProductAttributeMultiplier] = "1"
		}
	}
	contents := make([]*model.Content, 0, len(r.ProductContent))
	for _, pc := range r.ProductContent {
		c := pc.Content
		contents = append(
			contents, &model.Content{
				ID:                 c.ID,
				Type:               c.Type,
				Label:              c.Label,
				Name:               c.Name,
				Vendor:             c.Vendor,
				ContentURL:         c.ContentURL,
				GPGURL:             c.GPGURL,
				RequiredTags:       c.RequiredTags,
				ReleaseVersion:     c.ReleaseVersion,
				Arches:             c.Arches,
				MetadataExpiration: c.MetadataExpiration,
				ModifiedProductIDs: append([]string(nil), c.ModifiedProductIDs...),
			},
		)
		p.Contents = append(p.Contents, model.ProductContent{ContentID: c.ID, Enabled: pc.Enabled})
	}
	return p, contents
}

// DistributorVersionRecordOf converts a distributor version
func DistributorVersionRecordOf(dv *model.DistributorVersion) *DistributorVersionRecord {
	r := &DistributorVersionRecord{
		ID:          strconv.FormatUint(uint64(dv.ID), 10),
		Name:        dv.Name,
		DisplayName: dv.DisplayName,
	}
	for _, c := range dv.Capabilities {
		r.Capabilities = append(r.Capabilities, CapabilityRecord{Name: c})
	}
	return r
}

// Model converts the record into a distributor version
func (r *DistributorVersionRecord) Model() *model.DistributorVersion {
	dv := &model.DistributorVersion{
		Name:        r.Name,
		DisplayName: r.DisplayName,
	}
	for _, c := range r.Capabilities {
		dv.Capabilities = append(dv.Capabilities, c.Name)
	}
	return dv
}

// CdnRecordOf converts a cdn
func CdnRecordOf(c *model.Cdn) *CdnRecord {
	return &CdnRecord{
		ID:    strconv.FormatUint(uint64(c.ID), 10),
		Label: c.Label,
		Name:  c.Name,
		URL:   c.URL,
	}
}

// Model converts the record into a cdn
func (r *CdnRecord) Model() *model.Cdn {
	return &model.Cdn{
		Label: r.Label,
		Name:  r.Name,
		URL:   r.URL,
	}
}
