package adminapi

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Options controls optional features of the admin API registration.
type Options struct {
	// UsersEnabled controls whether the user management API is mounted.
	// Default behavior: enabled when left at zero value via a nil *Options in Register.
	UsersEnabled bool
	// WorkDir receives uploaded manifests until they were imported
	WorkDir string
}

// Register mounts all admin API routes under the provided group.
func Register(r fiber.Router, backends model.Backends, manager *manifest.Manager, opts *Options) {
	workDir := os.TempDir()
	if opts != nil && opts.WorkDir != "" {
		workDir = opts.WorkDir
	}

	// Optional authentication middleware for all admin routes
	r.Use(authMiddleware(backends.Users))

	registerImports(r, manager, backends, workDir)
	registerExports(r, manager)
	registerManifests(r, manager)
	if opts == nil || opts.UsersEnabled {
		registerUsers(r, backends.Users)
	}
}
