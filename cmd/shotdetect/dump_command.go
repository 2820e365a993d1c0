package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shotdetect/internal/export"
)

func newDumpCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:         "dump <record-log>",
		Short:       "Print a binary record log as JSON lines",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind = strings.ToLower(strings.TrimSpace(kind))
			switch kind {
			case "", export.KindScore, export.KindEnvelope:
			default:
				return fmt.Errorf("unknown record kind %q (want %s or %s)", kind, export.KindScore, export.KindEnvelope)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return export.ReadRecordFile(args[0], func(rec export.Record) error {
				if kind != "" && rec.Kind != kind {
					return nil
				}
				return enc.Encode(rec)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only print records of this kind (score or envelope)")
	return cmd
}
