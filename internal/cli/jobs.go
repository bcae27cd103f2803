package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cloudpan/pan115/internal/task"
)

// watchTask renders task progress until the handle settles.
func watchTask[T any](ctx context.Context, tk *task.Task[T], label string) (T, error) {
	bar := progressbar.Default(100, label)
	defer bar.Finish()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-tk.Done():
			bar.Set(tk.Progress())
			return tk.Wait(ctx)
		case <-ctx.Done():
			tk.Cancel()
			return tk.Wait(context.Background())
		case <-ticker.C:
			bar.Set(tk.Progress())
		}
	}
}

func newExportCmd() *cobra.Command {
	var (
		target string
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "export <dir-id> [dir-id...]",
		Short: "Export a directory tree to a text file on the drive",
		Long: `Ask the server to walk one or more directories and write their tree
as a text file. The command waits until the file exists and prints its
name and pick code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			tk, err := client.ExportDirFuture(ctx, args, target, depth)
			if err != nil {
				return err
			}
			result, err := watchTask(ctx, tk, "exporting")
			if err != nil {
				return err
			}

			fmt.Printf("exported to %s (pick code %s)\n", result.FileName, result.PickCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "U_1_0", "Directory tag the tree file is written to")
	cmd.Flags().IntVar(&depth, "depth", 0, "Depth limit, 0 for unlimited")

	return cmd
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Work with archives stored on the drive",
	}
	cmd.AddCommand(newExtractDecompressCmd())
	cmd.AddCommand(newExtractListCmd())
	cmd.AddCommand(newExtractFilesCmd())
	return cmd
}

func newExtractDecompressCmd() *cobra.Command {
	var (
		password       string
		promptPassword bool
	)

	cmd := &cobra.Command{
		Use:   "decompress <pick-code>",
		Short: "Decompress an archive so its listing becomes browsable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if promptPassword {
				var err error
				password, err = promptSecret("Archive password: ")
				if err != nil {
					return err
				}
			}

			client, _, err := newAPIClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			tk, err := client.ExtractPushFuture(ctx, args[0], password)
			if err != nil {
				return err
			}
			if _, err := watchTask(ctx, tk, "decompressing"); err != nil {
				return err
			}

			fmt.Println("archive is ready to browse")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Archive password")
	cmd.Flags().BoolVar(&promptPassword, "ask-password", false, "Prompt for the archive password without echoing")

	return cmd
}

func newExtractListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <pick-code> [dir]",
		Short: "List the contents of a decompressed archive",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient()
			if err != nil {
				return err
			}

			dir := ""
			if len(args) == 2 {
				dir = args[1]
			}
			entries, err := client.ExtractList(GetContext(), args[0], dir)
			if err != nil {
				return err
			}

			for _, e := range entries {
				marker := ""
				if e.FileCategory == 0 {
					marker = "/"
				}
				fmt.Printf("%s%s\n", e.FileName, marker)
			}
			return nil
		},
	}
	return cmd
}

func newExtractFilesCmd() *cobra.Command {
	var toDir string

	cmd := &cobra.Command{
		Use:   "files <pick-code> [path...]",
		Short: "Extract archive entries into a drive directory",
		Long: `Copy entries out of a decompressed archive into a directory on the
drive. Paths ending in "/" are extracted as whole directories; with no
paths, everything in the archive root is extracted. The command waits
for the server-side copy to finish.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient()
			if err != nil {
				return err
			}

			ctx := GetContext()
			tk, err := client.ExtractFileFuture(ctx, args[0], args[1:], toDir)
			if err != nil {
				return err
			}
			if _, err := watchTask(ctx, tk, "extracting"); err != nil {
				return err
			}

			fmt.Println("extraction finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&toDir, "to", "0", "Destination directory id")

	return cmd
}
