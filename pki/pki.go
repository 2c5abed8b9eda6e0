// Package pki signs manifest archives and verifies their signatures against
// the set of trusted upstream keys.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
)

// Config configures the signing key and the trusted upstream certificates
type Config struct {
	// KeyFile is a PEM encoded RSA private key
	KeyFile string
	// RSAKeyLen is used when a missing key is generated
	RSAKeyLen int
	// AutoGenerateKey creates KeyFile if it does not exist
	AutoGenerateKey bool
	// UpstreamCertDir holds PEM certificates of upstream systems whose
	// manifests are accepted
	UpstreamCertDir string
	// UpstreamCertFiles lists additional trusted PEM certificates
	UpstreamCertFiles []string
}

// Service signs with a single private key and verifies against a set of
// trusted public keys. The own public key is always trusted.
type Service struct {
	key *rsa.PrivateKey

	mu      sync.RWMutex
	trusted jwk.Set
}

// New returns a Service for the passed key that trusts the passed certificates
func New(key *rsa.PrivateKey, trusted ...*x509.Certificate) (*Service, error) {
	if key == nil {
		return nil, errors.New("pki: no signing key")
	}
	s := &Service{
		key:     key,
		trusted: jwk.NewSet(),
	}
	if err := s.TrustKey(&key.PublicKey); err != nil {
		return nil, err
	}
	for _, c := range trusted {
		if err := s.TrustCertificate(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load builds a Service from configuration
func Load(conf Config) (*Service, error) {
	key, err := loadOrGenerateKey(conf)
	if err != nil {
		return nil, err
	}
	certFiles := conf.UpstreamCertFiles
	if conf.UpstreamCertDir != "" {
		entries, err := os.ReadDir(conf.UpstreamCertDir)
		if err != nil {
			return nil, errors.Wrap(err, "pki: reading upstream certificate dir failed")
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if strings.HasSuffix(name, ".pem") || strings.HasSuffix(name, ".crt") {
				certFiles = append(certFiles, filepath.Join(conf.UpstreamCertDir, name))
			}
		}
	}
	var certs []*x509.Certificate
	for _, f := range certFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "pki: reading certificate '%s' failed", f)
		}
		parsed, err := ParseCertificates(data)
		if err != nil {
			return nil, errors.Wrapf(err, "pki: parsing certificate '%s' failed", f)
		}
		certs = append(certs, parsed...)
	}
	return New(key, certs...)
}

func loadOrGenerateKey(conf Config) (*rsa.PrivateKey, error) {
	if conf.KeyFile == "" {
		return nil, errors.New("pki: no key file configured")
	}
	if !fileutils.FileExists(conf.KeyFile) {
		if !conf.AutoGenerateKey {
			return nil, errors.Errorf("pki: key file '%s' does not exist", conf.KeyFile)
		}
		bits := conf.RSAKeyLen
		if bits == 0 {
			bits = 2048
		}
		log.WithField("file", conf.KeyFile).Info("generating manifest signing key")
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, errors.Wrap(err, "pki: key generation failed")
		}
		if err = WritePrivateKey(conf.KeyFile, key); err != nil {
			return nil, err
		}
		return key, nil
	}
	data, err := os.ReadFile(conf.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "pki: reading key file failed")
	}
	return ParsePrivateKey(data)
}

// ParsePrivateKey parses a PEM encoded RSA private key (PKCS#1 or PKCS#8)
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	k, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, errors.Wrap(err, "pki: parsing private key failed")
	}
	var raw any
	if err = jwk.Export(k, &raw); err != nil {
		return nil, errors.Wrap(err, "pki: exporting private key failed")
	}
	rsaKey, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("pki: unsupported private key type %T", raw)
	}
	return rsaKey, nil
}

// WritePrivateKey stores key PKCS#8 PEM encoded at path
func WritePrivateKey(path string, key *rsa.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return errors.Wrap(err, "pki: encoding private key failed")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "pki: creating key dir failed")
		}
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return errors.Wrap(os.WriteFile(path, data, 0o600), "pki: writing private key failed")
}

// ParseCertificates parses all PEM certificate blocks in data
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificate found")
	}
	return certs, nil
}

// TrustCertificate adds the public key of c to the trusted set
func (s *Service) TrustCertificate(c *x509.Certificate) error {
	return s.TrustKey(c.PublicKey)
}

// TrustKey adds a public key to the trusted set
func (s *Service) TrustKey(pub crypto.PublicKey) error {
	k, err := jwk.Import(pub)
	if err != nil {
		return errors.Wrap(err, "pki: importing public key failed")
	}
	if err = jwk.AssignKeyID(k); err != nil {
		return errors.Wrap(err, "pki: assigning key id failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.trusted.AddKey(k); err != nil {
		return errors.Wrap(err, "pki: adding trusted key failed")
	}
	log.WithField("thumbprint", thumbprint(k)).Debug("trusting manifest signing key")
	return nil
}

// TrustedKeys returns the number of trusted keys
func (s *Service) TrustedKeys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trusted.Len()
}

// Sign returns the RSA-SHA256 signature of everything read from r
func (s *Service) Sign(r io.Reader) ([]byte, error) {
	digest, err := digestOf(r)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest)
	return sig, errors.Wrap(err, "pki: signing failed")
}

// Verify reports whether signature was made over the content of r by any
// of the trusted keys
func (s *Service) Verify(r io.Reader, signature []byte) (bool, error) {
	digest, err := digestOf(r)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.trusted.Len(); i++ {
		k, ok := s.trusted.Key(i)
		if !ok {
			continue
		}
		var raw any
		if err = jwk.Export(k, &raw); err != nil {
			log.WithError(err).Warn("skipping unusable trusted key")
			continue
		}
		pub, ok := raw.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, signature) == nil {
			log.WithField("thumbprint", thumbprint(k)).Debug("manifest signature verified")
			return true, nil
		}
	}
	return false, nil
}

func digestOf(r io.Reader) ([]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, errors.Wrap(err, "pki: reading signed content failed")
	}
	return h.Sum(nil), nil
}

func thumbprint(k jwk.Key) string {
	tp, err := k.Thumbprint(crypto.SHA256)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(tp)
}
