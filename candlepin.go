// Package candlepin wires the manifest import and export services into an
// http server.
package candlepin

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/api/adminapi"
	"github.com/candlepin/candlepin-sub033/internal/version"
	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// defaultBodyLimit allows manifest uploads of up to 64 MiB
const defaultBodyLimit = 64 << 20

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    30 * time.Second,
	WriteTimeout:   120 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

// Server serves the admin API for manifest imports and exports
type Server struct {
	server     *fiber.App
	serverConf ServerConf
}

// NewServer creates a Server. Access log lines are written to accessLog.
func NewServer(
	serverConf ServerConf, backends model.Backends, manager *manifest.Manager, apiOpts *adminapi.Options,
	accessLog io.Writer,
) *Server {
	conf := FiberServerConfig
	if tps := serverConf.TrustedProxies; len(tps) > 0 {
		conf.TrustedProxies = tps
		conf.EnableTrustedProxyCheck = true
	}
	conf.ProxyHeader = serverConf.ForwardedIPHeader
	conf.BodyLimit = serverConf.BodyLimit
	if conf.BodyLimit <= 0 {
		conf.BodyLimit = defaultBodyLimit
	}
	server := fiber.New(conf)
	server.Use(recover.New())
	server.Use(compress.New())
	server.Use(logger.New(logger.Config{Output: accessLog}))
	server.Use(requestid.New())

	server.Get(
		"/status", func(ctx *fiber.Ctx) error {
			return ctx.JSON(
				fiber.Map{
					"version": version.Full(),
					"time":    time.Now().UTC(),
				},
			)
		},
	)
	adminapi.Register(server.Group("/api/v1/admin"), backends, manager, apiOpts)
	return &Server{
		server:     server,
		serverConf: serverConf,
	}
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (s *Server) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(s.server)
}

// Listen starts an http server at the specific address
func (s *Server) Listen(addr string) error {
	return s.server.Listen(addr)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}

// Start serves on the configured port and blocks until the server stops
func (s *Server) Start() error {
	conf := s.serverConf
	if !conf.TLS.Enabled {
		log.WithField("port", conf.Port).Info("TLS is disabled starting http server")
		return s.server.Listen(fmt.Sprintf("%s:%d", conf.IPListen, conf.Port))
	}
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(":80")).Error("redirect server stopped")
		}()
	}
	log.Info("TLS enabled, starting https server on port 443")
	return s.server.ListenTLS(fmt.Sprintf("%s:443", conf.IPListen), conf.TLS.Cert, conf.TLS.Key)
}
