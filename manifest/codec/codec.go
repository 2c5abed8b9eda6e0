// Package codec translates between stored entities and the per-file JSON
// records of a manifest. Every record kind has one Codec, selected through
// a static registry keyed by the manifest path segment it lives under.
package codec

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Segment is a top-level manifest path segment: a file or a directory.
type Segment string

// Manifest path segments
const (
	SegmentMeta                    Segment = "meta.json"
	SegmentConsumer                Segment = "consumer.json"
	SegmentUpstreamConsumer        Segment = "upstream_consumer"
	SegmentEntitlements            Segment = "entitlements"
	SegmentEntitlementCertificates Segment = "entitlement_certificates"
	SegmentProducts                Segment = "products"
	SegmentConsumerTypes           Segment = "consumer_types"
	SegmentDistributorVersions     Segment = "distributor_version"
	SegmentCdns                    Segment = "content_delivery_network"
	SegmentRules                   Segment = "rules2"
	SegmentLegacyRules             Segment = "rules"
)

// Descriptor describes a manifest path segment.
type Descriptor struct {
	Segment Segment
	// Dir is set for segments holding one file per record
	Dir bool
	// Required segments must be present in every manifest
	Required bool
}

var registry = []Descriptor{
	{Segment: SegmentMeta, Required: true},
	{Segment: SegmentConsumer, Required: true},
	{Segment: SegmentUpstreamConsumer, Dir: true},
	{Segment: SegmentEntitlements, Dir: true},
	{Segment: SegmentEntitlementCertificates, Dir: true},
	{Segment: SegmentProducts, Dir: true},
	{Segment: SegmentConsumerTypes, Dir: true, Required: true},
	{Segment: SegmentDistributorVersions, Dir: true},
	{Segment: SegmentCdns, Dir: true},
	{Segment: SegmentRules, Dir: true},
	{Segment: SegmentLegacyRules, Dir: true},
}

// Lookup returns the descriptor of a segment.
func Lookup(segment Segment) (Descriptor, bool) {
	for _, d := range registry {
		if d.Segment == segment {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Descriptors returns all known segments in manifest order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Path returns the location of a segment below root.
func Path(root string, segment Segment) string {
	return filepath.Join(root, string(segment))
}

// Exists reports whether a segment is present below root.
func Exists(root string, segment Segment) bool {
	info, err := os.Stat(Path(root, segment))
	if err != nil {
		return false
	}
	d, ok := Lookup(segment)
	return !ok || d.Dir == info.IsDir()
}

// Codec encodes and decodes the JSON records of one segment. For directory
// segments fileName derives the file name of a record.
type Codec[T any] struct {
	Segment  Segment
	fileName func(*T) string
}

func newFileCodec[T any](segment Segment) Codec[T] {
	return Codec[T]{Segment: segment}
}

func newDirCodec[T any](segment Segment, fileName func(*T) string) Codec[T] {
	return Codec[T]{
		Segment:  segment,
		fileName: fileName,
	}
}

// Record codecs
var (
	Meta                = newFileCodec[MetaRecord](SegmentMeta)
	Consumer            = newFileCodec[ConsumerRecord](SegmentConsumer)
	UpstreamIdentity    = newDirCodec(SegmentUpstreamConsumer, certificateFileName)
	Entitlements        = newDirCodec(SegmentEntitlements, func(r *EntitlementRecord) string { return r.ID })
	Products            = newDirCodec(SegmentProducts, func(r *ProductRecord) string { return r.ID })
	ConsumerTypes       = newDirCodec(SegmentConsumerTypes, func(r *ConsumerTypeRecord) string { return r.Label })
	DistributorVersions = newDirCodec(SegmentDistributorVersions, func(r *DistributorVersionRecord) string { return r.Name })
	Cdns                = newDirCodec(SegmentCdns, func(r *CdnRecord) string { return r.Label })
)

func certificateFileName(r *CertificateRecord) string {
	if r.Serial != nil {
		return strconv.FormatUint(r.Serial.ID, 10)
	}
	return r.ID
}

// Encode writes v as JSON to w.
func (c Codec[T]) Encode(w io.Writer, v *T) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return errors.Wrapf(enc.Encode(v), "codec: encoding %s failed", c.Segment)
}

// Decode reads one JSON record from r.
func (c Codec[T]) Decode(r io.Reader) (*T, error) {
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, errors.Wrapf(err, "codec: decoding %s failed", c.Segment)
	}
	return &v, nil
}

// Write stores v below root and returns the written path.
func (c Codec[T]) Write(root string, v *T) (string, error) {
	p := Path(root, c.Segment)
	if c.fileName != nil {
		name, err := safeName(c.fileName(v))
		if err != nil {
			return "", errors.Wrapf(err, "codec: writing %s failed", c.Segment)
		}
		p = filepath.Join(p, name+".json")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", errors.Wrapf(err, "codec: writing %s failed", c.Segment)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", errors.Wrapf(err, "codec: writing %s failed", c.Segment)
	}
	if err = c.Encode(f, v); err != nil {
		_ = f.Close()
		return "", err
	}
	return p, errors.Wrapf(f.Close(), "codec: writing %s failed", c.Segment)
}

// ReadFile decodes the record stored at path.
func (c Codec[T]) ReadFile(path string) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "codec: reading %s failed", c.Segment)
	}
	defer f.Close()
	return c.Decode(f)
}

// Read decodes the single record of a file segment below root.
func (c Codec[T]) Read(root string) (*T, error) {
	return c.ReadFile(Path(root, c.Segment))
}

// ReadAll decodes every .json file of a directory segment below root, in
// file name order. Other files are skipped. A missing directory yields no
// records.
func (c Codec[T]) ReadAll(root string) ([]*T, error) {
	files, err := JSONFiles(root, c.Segment)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(files))
	for _, f := range files {
		log.WithField("file", filepath.Base(f)).Debugf("importing %s record", c.Segment)
		v, err := c.ReadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// JSONFiles lists the .json files of a directory segment in name order.
func JSONFiles(root string, segment Segment) ([]string, error) {
	entries, err := os.ReadDir(Path(root, segment))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "codec: listing %s failed", segment)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".json") {
			log.WithField("file", e.Name()).Debugf("skipping non json file in %s", segment)
			continue
		}
		files = append(files, filepath.Join(Path(root, segment), e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// WritePEM stores a certificate and its key as name.pem in a directory
// segment below root.
func WritePEM(root string, segment Segment, name, cert, key string) (string, error) {
	name, err := safeName(name)
	if err != nil {
		return "", errors.Wrapf(err, "codec: writing %s failed", segment)
	}
	dir := Path(root, segment)
	if err = os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrapf(err, "codec: writing %s failed", segment)
	}
	p := filepath.Join(dir, name+".pem")
	content := cert
	if key != "" {
		content += key
	}
	return p, errors.Wrapf(os.WriteFile(p, []byte(content), 0o640), "codec: writing %s failed", segment)
}

func safeName(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid record file name '%s'", name)
	}
	return name, nil
}
