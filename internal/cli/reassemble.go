package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/reassemble"
)

func RunReassemble(cmd *cobra.Command, args []string) error {
	outPath, err := OptionalStringFlag(cmd, "out")
	if err != nil {
		return err
	}
	if outPath == "" || outPath == "-" {
		return reassemble.Write(args[0], os.Stdout)
	}

	var buf bytes.Buffer
	if err := reassemble.Write(args[0], &buf); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(outPath, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	Logger(cmd).Sugar().Infof("reassembled %s into %s", args[0], outPath)
	return nil
}
