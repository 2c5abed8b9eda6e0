package config

import (
	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/candlepin/candlepin-sub033/pki"
)

// signingConf configures the key that signs exports and the certificates
// of upstream systems whose manifests are trusted on import
type signingConf struct {
	KeyFile           string   `yaml:"key_file" split_words:"true"`
	RSAKeyLen         int      `yaml:"rsa_key_len" split_words:"true"`
	AutoGenerateKeys  bool     `yaml:"auto_generate_keys" split_words:"true"`
	UpstreamCertDir   string   `yaml:"upstream_cert_dir" split_words:"true"`
	UpstreamCertFiles []string `yaml:"upstream_cert_files" split_words:"true"`
}

var defaultSigningConf = signingConf{
	KeyFile:          "signing.pem",
	RSAKeyLen:        4096,
	AutoGenerateKeys: true,
}

func (c *signingConf) validate() error {
	if c.KeyFile == "" {
		return errors.New("key_file must be specified")
	}
	if !c.AutoGenerateKeys && !fileutils.FileExists(c.KeyFile) {
		return errors.Errorf("key file '%s' does not exist", c.KeyFile)
	}
	if c.RSAKeyLen < 2048 {
		return errors.New("rsa_key_len must be at least 2048")
	}
	if c.UpstreamCertDir != "" && !fileutils.FileExists(c.UpstreamCertDir) {
		return errors.Errorf("upstream_cert_dir '%s' does not exist", c.UpstreamCertDir)
	}
	return nil
}

// PKIConfig returns the pki.Config for the passed Config
func PKIConfig(conf Config) pki.Config {
	s := conf.Signing
	return pki.Config{
		KeyFile:           s.KeyFile,
		RSAKeyLen:         s.RSAKeyLen,
		AutoGenerateKey:   s.AutoGenerateKeys,
		UpstreamCertDir:   s.UpstreamCertDir,
		UpstreamCertFiles: s.UpstreamCertFiles,
	}
}
