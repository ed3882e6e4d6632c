package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/capability"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "Show which decompilation modes are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(Cfg, false)
		if err != nil {
			return err
		}
		detector := svc.Detector()
		printModes(cmd.Context(), cmd.OutOrStdout(), detector)
		return nil
	},
}

func printModes(ctx context.Context, out io.Writer, detector *capability.Detector) {
	availability := detector.DetectAvailability(ctx)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tKIND\tAVAILABLE")
	for _, id := range detector.Modes() {
		kind := "external"
		if detector.IsEmbedded(id) {
			kind = "embedded"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", id, kind, availability[id])
	}
	tw.Flush()
	fmt.Fprintf(out, "\njava runtime: %t\n", detector.RuntimeAvailable(ctx))
}

func init() {
	RootCmd.AddCommand(modesCmd)
}
