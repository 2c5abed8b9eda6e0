package candlepin

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// ServerConf configures the http server
type ServerConf struct {
	IPListen          string   `yaml:"ip_listen" split_words:"true"`
	Port              int      `yaml:"port"`
	TLS               tlsConf  `yaml:"tls"`
	TrustedProxies    []string `yaml:"trusted_proxies" split_words:"true"`
	ForwardedIPHeader string   `yaml:"forwarded_ip_header" split_words:"true"`
	// BodyLimit is the maximum upload size in bytes
	BodyLimit int `yaml:"body_limit" split_words:"true"`
}

type tlsConf struct {
	Enabled      bool   `yaml:"enabled"`
	RedirectHTTP bool   `yaml:"redirect_http" split_words:"true"`
	Cert         string `yaml:"cert"`
	Key          string `yaml:"key"`
}

// handleError renders errors that escaped a handler
func handleError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	}
	return ctx.Status(code).JSON(
		fiber.Map{
			"error":             "server_error",
			"error_description": err.Error(),
		},
	)
}
