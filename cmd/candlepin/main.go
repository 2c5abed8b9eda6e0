package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"

	candlepin "github.com/candlepin/candlepin-sub033"
	"github.com/candlepin/candlepin-sub033/api/adminapi"
	"github.com/candlepin/candlepin-sub033/cmd/candlepin/config"
	"github.com/candlepin/candlepin-sub033/internal/logger"
	"github.com/candlepin/candlepin-sub033/internal/version"
	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/pki"
	"github.com/candlepin/candlepin-sub033/storage"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	c, err := config.Load(configFile)
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}
	if err = logger.Init(config.LoggerConfig(c)); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	log.WithField("version", version.Full()).Info("Loaded Config")
	log.WithFields(structs.Map(c.Server)).Debug("server config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(config.StorageConfig(c))
	if err != nil {
		log.WithError(err).Fatal("could not open storage")
	}
	defer store.Close()
	log.Info("Loaded storage backend")

	signer, err := pki.Load(config.PKIConfig(c))
	if err != nil {
		log.WithError(err).Fatal("could not load signing key")
	}
	log.WithField("trusted_keys", signer.TrustedKeys()).Info("Loaded signing key")

	files, err := config.OpenFileStore(ctx, c)
	if err != nil {
		log.WithError(err).Fatal("could not open manifest file store")
	}
	defer files.Close()

	mc := config.ManifestConfig(c)
	manager := manifest.NewManager(
		store, manifest.NewImporter(store, signer, mc), manifest.NewExporter(store, signer, mc), files,
		config.ManagerConfig(c),
	)
	manager.Start(ctx)
	defer manager.Stop()

	server := candlepin.NewServer(
		c.Server, store.Backends(), manager, &adminapi.Options{
			UsersEnabled: c.API.Admin.UsersEnabled,
			WorkDir:      c.Export.WorkDir,
		}, logger.AccessLog(),
	)
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()
	if err = server.Start(); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
