// Package config loads the candlepin configuration from a yaml file and the
// environment.
package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	candlepin "github.com/candlepin/candlepin-sub033"
)

// EnvPrefix prefixes all environment variables that override file values,
// e.g. CANDLEPIN_STORAGE_DRIVER or CANDLEPIN_SERVER_TLS_ENABLED
const EnvPrefix = "CANDLEPIN"

// Config holds the candlepin configuration
type Config struct {
	Server    candlepin.ServerConf `yaml:"server"`
	Storage   storageConf          `yaml:"storage"`
	Logging   loggingConf          `yaml:"logging"`
	Signing   signingConf          `yaml:"signing"`
	Export    exportConf           `yaml:"export"`
	FileStore fileStoreConf        `yaml:"file_store" split_words:"true"`
	Jobs      jobsConf             `yaml:"jobs"`
	API       apiConf              `yaml:"api"`
}

type configValidator interface {
	validate() error
}

var c Config

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/candlepin/config",
	"/candlepin",
	"/data/config",
	"/data",
	"/etc/candlepin",
}

// Get returns the Config
func Get() Config {
	return c
}

func defaultConfig() Config {
	return Config{
		Server: candlepin.ServerConf{
			Port: 8080,
		},
		Storage:   defaultStorageConf,
		Logging:   defaultLoggingConf,
		Signing:   defaultSigningConf,
		Export:    defaultExportConf,
		FileStore: defaultFileStoreConf,
		Jobs:      defaultJobsConf,
		API:       defaultAPIConf,
	}
}

// Load reads the config file, applies environment overrides and validates
// the result. Without a filename the default locations are searched; no file
// at all is fine as long as the defaults and the environment suffice.
func Load(filename string) (Config, error) {
	conf := defaultConfig()
	data, err := readConfigFile(filename)
	if err != nil {
		return conf, err
	}
	if len(data) > 0 {
		if err = yaml.Unmarshal(data, &conf); err != nil {
			return conf, errors.Wrap(err, "config: parsing yaml failed")
		}
	}
	if err = envconfig.Process(EnvPrefix, &conf); err != nil {
		return conf, errors.Wrap(err, "config: reading environment failed")
	}
	if err = conf.validate(); err != nil {
		return conf, err
	}
	c = conf
	return conf, nil
}

func readConfigFile(filename string) ([]byte, error) {
	if filename != "" {
		data, err := os.ReadFile(filename)
		return data, errors.Wrap(err, "config: reading file failed")
	}
	for _, dir := range possibleConfigLocations {
		for _, name := range []string{"config.yaml", "config.yml", "candlepin.yaml"} {
			p := dir + "/" + name
			if !fileutils.FileExists(p) {
				continue
			}
			log.WithField("file", p).Debug("using config file")
			data, err := os.ReadFile(p)
			return data, errors.Wrap(err, "config: reading file failed")
		}
	}
	return nil, nil
}

func (conf *Config) validate() error {
	for name, v := range map[string]configValidator{
		"storage":    &conf.Storage,
		"logging":    &conf.Logging,
		"signing":    &conf.Signing,
		"export":     &conf.Export,
		"file_store": &conf.FileStore,
		"jobs":       &conf.Jobs,
	} {
		if err := v.validate(); err != nil {
			return errors.Wrapf(err, "config: invalid %s section", name)
		}
	}
	if conf.Server.Port == 0 && !conf.Server.TLS.Enabled {
		return errors.New("config: server port must be set")
	}
	return nil
}
