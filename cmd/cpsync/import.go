package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/candlepin/candlepin-sub033/manifest/conflict"
)

func newImportCmd(a *app) *cobra.Command {
	var force []string
	cmd := &cobra.Command{
		Use:   "import <owner-key> <manifest.zip>",
		Short: "Import a manifest into an owner",
		Long: "Import a manifest into an owner. Conflicts abort the import unless " +
			"they are forced; pass --force multiple times or comma separated, " +
			"e.g. --force MANIFEST_SAME,SIGNATURE_CONFLICT.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := conflict.ParseOverrides(force)
			if err != nil {
				return err
			}
			res, err := a.importer.Import(cmd.Context(), args[0], args[1], overrides, "")
			if err != nil {
				var ice *conflict.ImportConflictError
				if errors.As(err, &ice) {
					cmd.PrintErrf("conflicts: %v\n", ice.Tokens())
				}
				return err
			}
			return a.printJSON(res.Record)
		},
	}
	cmd.Flags().StringSliceVarP(&force, "force", "f", nil, "conflicts to override")
	return cmd
}

func newUndoCmd(a *app) *cobra.Command {
	var principal string
	cmd := &cobra.Command{
		Use:   "undo <owner-key>",
		Short: "Remove the imported subscriptions of an owner and unbind its upstream consumer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := a.importer.UndoImport(cmd.Context(), args[0], principal)
			if err != nil {
				return err
			}
			return a.printJSON(record)
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "cpsync", "recorded as the one who undid the import")
	return cmd
}

func newRecordsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records <owner-key>",
		Short: "List the import records of an owner, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.store.Backends()
			owner, err := b.Owners.Get(args[0])
			if err != nil {
				return err
			}
			if owner == nil {
				return errors.Errorf("owner not found: %s", args[0])
			}
			records, err := b.ImportRecords.ListByOwner(owner.ID)
			if err != nil {
				return err
			}
			return a.printJSON(records)
		},
	}
}
