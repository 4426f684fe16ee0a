package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/arbor/config"
	"github.com/jacentio/arbor/kv/dynamokv"
)

var errNotDynamo = errors.New("table management requires --backend dynamodb")

func newTablesCmd(opts *options) *cobra.Command {
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage DynamoDB tables",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the counter table and the config table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.backend != backendDynamo {
				return errNotDynamo
			}
			client, err := opts.dynamoClient(cmd.Context())
			if err != nil {
				return err
			}
			cfg := opts.dynamoConfig()
			if err := dynamokv.CreateTables(cmd.Context(), client, cfg, []string{config.EntityName}, tableWait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tables %s and %s are active\n", cfg.CounterTable, cfg.TablePrefix+config.EntityName)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the counter table and the config table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.backend != backendDynamo {
				return errNotDynamo
			}
			client, err := opts.dynamoClient(cmd.Context())
			if err != nil {
				return err
			}
			return dynamokv.DeleteTables(cmd.Context(), client, opts.dynamoConfig(), []string{config.EntityName})
		},
	}

	tablesCmd.AddCommand(createCmd, deleteCmd)
	return tablesCmd
}
