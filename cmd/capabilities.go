// File: cmd/capabilities.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/pilot-cli/internal/capability"
)

func newCapabilitiesCmd() *cobra.Command {
	var format string
	capsCmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Prints the capability catalog the step oracle sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Handlers are never invoked here, so nothing is bound to them.
			registry, err := newRegistry(nil, nil)
			if err != nil {
				return err
			}
			return writeCatalog(cmd.OutOrStdout(), registry.Describe(), format)
		},
	}
	capsCmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return capsCmd
}

func writeCatalog(w io.Writer, catalog []capability.Description, format string) error {
	switch strings.ToLower(format) {
	case "json":
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(catalog); err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
