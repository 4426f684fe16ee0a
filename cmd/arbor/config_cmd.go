package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write settings",
	}

	getCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a setting as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			v, err := s.config.Value(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("config property %q has not been set", args[0])
			}
			return printJSON(cmd, v)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a setting; the value is parsed as JSON, falling back to a plain string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			changed, err := s.config.Set(cmd.Context(), args[0], parseValue(args[1]))
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged\n", args[0])
			}
			return nil
		},
	}

	unsetCmd := &cobra.Command{
		Use:   "unset <name>",
		Short: "Delete a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.config.Unset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("config property %q has not been set", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			all, err := s.config.All(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(all))
			for name := range all {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				b, err := json.Marshal(all[name])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, b)
			}
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Store every setting of a YAML mapping of names to values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := readSeedFile(args[0])
			if err != nil {
				return err
			}

			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			names := make([]string, 0, len(settings))
			for name := range settings {
				names = append(names, name)
			}
			sort.Strings(names)
			updated := 0
			for _, name := range names {
				changed, err := s.config.Set(cmd.Context(), name, settings[name])
				if err != nil {
					return fmt.Errorf("import %s: %w", name, err)
				}
				if changed {
					updated++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d settings updated\n", updated, len(names))
			return nil
		},
	}

	configCmd.AddCommand(getCmd, setCmd, unsetCmd, listCmd, importCmd)
	return configCmd
}

// parseValue reads s as JSON, or returns it verbatim when it is not JSON.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func readSeedFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	settings := make(map[string]any)
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
