package main

import (
	"encoding/json"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/candlepin/candlepin-sub033/cmd/candlepin/config"
	"github.com/candlepin/candlepin-sub033/internal/logger"
	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/pki"
	"github.com/candlepin/candlepin-sub033/storage"
)

// app holds what the commands operate on. Tests set store and signer
// directly, otherwise they are opened from the config file.
type app struct {
	configFile string
	out        io.Writer

	store    *storage.Storage
	signer   *pki.Service
	conf     manifest.Config
	importer *manifest.Importer
	exporter *manifest.Exporter
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpsync",
		Short: "cpsync imports and exports subscription manifests",
		Long: "cpsync works directly on the candlepin database: it exports " +
			"distributor consumers into signed manifests, imports manifests into " +
			"owners and undoes imports.",
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "the config file to use")
	rootCmd.AddCommand(newExportCmd(a), newImportCmd(a), newUndoCmd(a), newRecordsCmd(a))
	return rootCmd
}

func (a *app) open(*cobra.Command, []string) error {
	if a.store == nil {
		c, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		if err = logger.Init(config.LoggerConfig(c)); err != nil {
			return err
		}
		if a.store, err = storage.NewStorage(config.StorageConfig(c)); err != nil {
			return err
		}
		if a.signer, err = pki.Load(config.PKIConfig(c)); err != nil {
			return err
		}
		a.conf = config.ManifestConfig(c)
	}
	a.importer = manifest.NewImporter(a.store, a.signer, a.conf)
	a.exporter = manifest.NewExporter(a.store, a.signer, a.conf)
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("closing storage failed")
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	a := &app{out: os.Stdout}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}
