package adminapi

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// parseOverrides reads the repeatable force query parameter. Values may
// also be comma separated.
func parseOverrides(c *fiber.Ctx) (conflict.Overrides, error) {
	var tokens []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("force") {
		for _, t := range strings.Split(string(raw), ",") {
			tokens = append(tokens, strings.TrimSpace(t))
		}
	}
	return conflict.ParseOverrides(tokens)
}

// parseSerials reads the comma separated serials query parameter. An
// absent parameter yields nil.
func parseSerials(c *fiber.Ctx) ([]uint64, error) {
	raw := c.Query("serials")
	if raw == "" {
		return nil, nil
	}
	var serials []uint64
	for _, s := range strings.Split(raw, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, err
		}
		serials = append(serials, v)
	}
	return serials, nil
}

func exportOptions(c *fiber.Ctx) manifest.ExportOptions {
	return manifest.ExportOptions{
		CdnLabel:  c.Query("cdn_label"),
		WebURL:    c.Query("webapp_prefix"),
		APIURL:    c.Query("api_url"),
		Principal: principal(c),
	}
}

// registerImports wires the owner scoped import routes
func registerImports(r fiber.Router, m *manifest.Manager, backends model.Backends, workDir string) {
	g := r.Group("/owners/:ownerKey/imports")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			owner, err := backends.Owners.Get(c.Params("ownerKey"))
			if err != nil {
				return sendError(c, err)
			}
			if owner == nil {
				return c.Status(fiber.StatusNotFound).JSON(errorNotFound("owner not found"))
			}
			records, err := backends.ImportRecords.ListByOwner(owner.ID)
			if err != nil {
				return sendError(c, err)
			}
			return c.JSON(records)
		},
	)

	g.Post(
		"/", func(c *fiber.Ctx) error {
			ownerKey := c.Params("ownerKey")
			overrides, err := parseOverrides(c)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest(err.Error()))
			}
			fh, err := c.FormFile("file")
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("manifest file is required"))
			}
			if err = os.MkdirAll(workDir, 0o750); err != nil {
				return sendError(c, err)
			}
			dir, err := os.MkdirTemp(workDir, "upload-")
			if err != nil {
				return sendError(c, err)
			}
			defer func() {
				if err := os.RemoveAll(dir); err != nil {
					log.WithError(err).WithField("dir", dir).Warn("could not remove upload dir")
				}
			}()
			fileName := filepath.Base(fh.Filename)
			path := filepath.Join(dir, "manifest.zip")
			if err = c.SaveFile(fh, path); err != nil {
				return sendError(c, err)
			}

			if c.QueryBool("async") {
				job, err := m.ImportAsync(c.UserContext(), ownerKey, fileName, path, overrides)
				if err != nil {
					return sendError(c, err)
				}
				return c.Status(fiber.StatusAccepted).JSON(job)
			}
			res, err := m.Importer.Import(c.UserContext(), ownerKey, path, overrides, fileName)
			if err != nil {
				return sendError(c, err)
			}
			return c.Status(fiber.StatusCreated).JSON(res.Record)
		},
	)

	g.Delete(
		"/", func(c *fiber.Ctx) error {
			record, err := m.Importer.UndoImport(c.UserContext(), c.Params("ownerKey"), principal(c))
			if err != nil {
				return sendError(c, err)
			}
			return c.JSON(record)
		},
	)
}

// registerExports wires the consumer scoped export routes
func registerExports(r fiber.Router, m *manifest.Manager) {
	g := r.Group("/consumers/:consumerUUID/export")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			uuid := c.Params("consumerUUID")
			opts := exportOptions(c)
			if c.QueryBool("async") {
				job, err := m.ExportAsync(c.UserContext(), uuid, opts)
				if err != nil {
					return sendError(c, err)
				}
				return c.Status(fiber.StatusAccepted).JSON(job)
			}
			a, err := m.Exporter.Export(c.UserContext(), uuid, opts)
			if err != nil {
				return sendError(c, err)
			}
			return sendArchive(c, a)
		},
	)

	g.Get(
		"/certificates", func(c *fiber.Ctx) error {
			serials, err := parseSerials(c)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest("invalid serials"))
			}
			a, err := m.Exporter.ExportEntitlementCerts(
				c.UserContext(), c.Params("consumerUUID"), serials, exportOptions(c),
			)
			if err != nil {
				return sendError(c, err)
			}
			return sendArchive(c, a)
		},
	)
}

// sendArchive streams an archive and removes it afterwards
func sendArchive(c *fiber.Ctx, a *manifest.Archive) error {
	defer func() {
		if err := a.Cleanup(); err != nil {
			log.WithError(err).Warn("could not remove export scratch dir")
		}
	}()
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return sendError(c, err)
	}
	c.Attachment(a.FileName)
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(data)
}

// registerManifests wires download of stored exports and job polling
func registerManifests(r fiber.Router, m *manifest.Manager) {
	r.Get(
		"/manifests/:manifestID", func(c *fiber.Ctx) error {
			f, err := m.Download(c.UserContext(), c.Params("manifestID"))
			if err != nil {
				return sendError(c, err)
			}
			if f == nil {
				return c.Status(fiber.StatusNotFound).JSON(errorNotFound("manifest not found"))
			}
			c.Attachment(f.FileName)
			c.Set(fiber.HeaderContentType, "application/zip")
			return c.Send(f.Data)
		},
	)

	r.Get(
		"/jobs/:jobID", func(c *fiber.Ctx) error {
			job, err := m.Job(c.Params("jobID"))
			if err != nil {
				return sendError(c, err)
			}
			if job == nil {
				return c.Status(fiber.StatusNotFound).JSON(errorNotFound("job not found"))
			}
			return c.JSON(job)
		},
	)
}
