package config

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/candlepin/candlepin-sub033/storage"
)

type storageConf struct {
	Driver          storage.DriverType `yaml:"driver"`
	DataDir         string             `yaml:"data_dir" split_words:"true"`
	DSN             string             `yaml:"dsn"`
	storage.DSNConf `yaml:",inline"`
	Debug           bool               `yaml:"debug"`
}

func (c *storageConf) validate() error {
	if !slices.Contains(storage.SupportedDrivers, c.Driver) {
		return errors.Errorf("unsupported driver '%s'", c.Driver)
	}
	if c.Driver == storage.DriverSQLite {
		if c.DataDir == "" {
			return errors.New("data_dir must be specified")
		}
		if !fileutils.FileExists(c.DataDir) {
			return errors.Errorf("data_dir '%s' does not exist", c.DataDir)
		}
		return nil
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver:  storage.DriverSQLite,
	DataDir: ".",
	DSNConf: storage.DSNConf{
		User: "candlepin",
		Host: "localhost",
		DB:   "candlepin",
	},
}

// StorageConfig returns the storage.Config for the passed Config
func StorageConfig(conf Config) storage.Config {
	return storage.Config{
		Driver:    conf.Storage.Driver,
		DSN:       conf.Storage.DSN,
		DataDir:   conf.Storage.DataDir,
		Debug:     conf.Storage.Debug,
		UsersHash: conf.API.Admin.Argon2idParams,
	}
}
