package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/dispatch"
	"github.com/CloudNativeWorks/elchi-decompiler/internal/scratch"
)

var (
	decompileMode      string
	decompileClassName string
	decompileOutput    string
)

var classMagic = []byte{0xCA, 0xFE, 0xBA, 0xBE}

var decompileCmd = &cobra.Command{
	Use:   "decompile <file>",
	Short: "Decompile a class file or archive",
	Long: `Decompile a single .class file to stdout, or a jar/zip archive into a
source archive written to --output (default: <file>-<mode>-decompiled.zip in
the current directory).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(Cfg, false)
		if err != nil {
			return err
		}

		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		head := make([]byte, len(classMagic))
		n, _ := io.ReadFull(in, head)
		if _, err := in.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if n == len(classMagic) && bytes.Equal(head, classMagic) {
			return decompileClass(cmd, svc, in)
		}
		return decompileArchive(cmd, svc, in, filepath.Base(args[0]))
	},
}

func decompileClass(cmd *cobra.Command, svc *dispatch.Service, in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	res, err := svc.DecompileUnit(cmd.Context(), dispatch.UnitRequest{
		Data:      data,
		Mode:      decompileMode,
		ClassName: decompileClassName,
	})
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("%s produced no source for %s", res.Mode, res.ClassName)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), res.Source)
	return err
}

func decompileArchive(cmd *cobra.Command, svc *dispatch.Service, in io.Reader, name string) error {
	res, err := svc.DecompileArchive(cmd.Context(), dispatch.ArchiveRequest{
		Source:       in,
		OriginalName: name,
		Mode:         decompileMode,
		Target:       decompileClassName,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	dest := decompileOutput
	if dest == "" {
		dest = res.Name
	}
	src, err := os.Open(res.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := scratch.CopyWithContext(cmd.Context(), out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d entries written to %s (%s)\n", res.Entries, dest, res.Mode)
	return nil
}

func init() {
	decompileCmd.Flags().StringVarP(&decompileMode, "mode", "m", "", "decompilation mode (default from engines.default_mode)")
	decompileCmd.Flags().StringVarP(&decompileClassName, "class-name", "c", "", "class name hint, or the only class to extract from an archive")
	decompileCmd.Flags().StringVarP(&decompileOutput, "output", "o", "", "output archive path")
	RootCmd.AddCommand(decompileCmd)
}
