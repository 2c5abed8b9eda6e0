package config

import (
	"net/url"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/manifest/archive"
)

// exportConf configures the scratch space and the url prefixes written to
// exported consumers
type exportConf struct {
	WorkDir string `yaml:"work_dir" split_words:"true"`
	WebURL  string `yaml:"web_url" split_words:"true"`
	APIURL  string `yaml:"api_url" envconfig:"API_URL"`
	// MaxExtractedSize caps the uncompressed bytes unpacked from an
	// imported manifest
	MaxExtractedSize int64 `yaml:"max_extracted_size" split_words:"true"`
}

var defaultExportConf = exportConf{
	WebURL:           "https://localhost:8443/candlepin",
	APIURL:           "https://localhost:8443/candlepin",
	MaxExtractedSize: archive.DefaultMaxSize,
}

func (c *exportConf) validate() error {
	if c.WorkDir != "" && !fileutils.FileExists(c.WorkDir) {
		return errors.Errorf("work_dir '%s' does not exist", c.WorkDir)
	}
	if c.MaxExtractedSize <= 0 {
		return errors.New("max_extracted_size must be positive")
	}
	for _, u := range []string{c.WebURL, c.APIURL} {
		if u == "" {
			continue
		}
		if _, err := url.Parse(u); err != nil {
			return errors.Wrapf(err, "invalid url '%s'", u)
		}
	}
	return nil
}

type jobsConf struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size" split_words:"true"`
}

var defaultJobsConf = jobsConf{
	Workers:   2,
	QueueSize: 16,
}

func (c *jobsConf) validate() error {
	if c.Workers < 1 {
		return errors.New("at least one worker is needed")
	}
	if c.QueueSize < 1 {
		return errors.New("queue_size must be positive")
	}
	return nil
}

// ManifestConfig returns the manifest.Config for the passed Config
func ManifestConfig(conf Config) manifest.Config {
	return manifest.Config{
		WorkDir: conf.Export.WorkDir,
		WebURL:  conf.Export.WebURL,
		APIURL:  conf.Export.APIURL,

		MaxExtractedSize: conf.Export.MaxExtractedSize,
	}
}

// ManagerConfig returns the manifest.ManagerConfig for the passed Config
func ManagerConfig(conf Config) manifest.ManagerConfig {
	return manifest.ManagerConfig{
		Workers:   conf.Jobs.Workers,
		QueueSize: conf.Jobs.QueueSize,
		WorkDir:   conf.Export.WorkDir,
	}
}
