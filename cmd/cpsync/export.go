package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/candlepin/candlepin-sub033/manifest"
)

type exportFlags struct {
	out       string
	cdnLabel  string
	webURL    string
	apiURL    string
	principal string
	certsOnly bool
	serials   []uint64
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export <consumer-uuid>",
		Short: "Export a distributor consumer into a signed manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.export(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "where to write the archive, defaults to <uuid>-export.zip")
	cmd.Flags().StringVar(&f.cdnLabel, "cdn", "", "label of the cdn written to the manifest")
	cmd.Flags().StringVar(&f.webURL, "web-url", "", "override the configured web url prefix")
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "override the configured api url prefix")
	cmd.Flags().StringVar(&f.principal, "principal", "cpsync", "recorded as the creator of the manifest")
	cmd.Flags().BoolVar(&f.certsOnly, "certs-only", false, "export only entitlement certificates")
	cmd.Flags().Uint64SliceVar(&f.serials, "serial", nil, "restrict a certificate export to these serials")
	return cmd
}

func (a *app) export(cmd *cobra.Command, consumerUUID string, f exportFlags) error {
	opts := manifest.ExportOptions{
		CdnLabel:  f.cdnLabel,
		WebURL:    f.webURL,
		APIURL:    f.apiURL,
		Principal: f.principal,
	}
	var (
		archive *manifest.Archive
		err     error
	)
	if f.certsOnly {
		archive, err = a.exporter.ExportEntitlementCerts(cmd.Context(), consumerUUID, f.serials, opts)
	} else {
		archive, err = a.exporter.Export(cmd.Context(), consumerUUID, opts)
	}
	if err != nil {
		return err
	}
	defer archive.Cleanup()

	out := f.out
	if out == "" {
		out = archive.FileName
	}
	if err = copyFile(archive.Path, out); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", out)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(out.Close())
}
