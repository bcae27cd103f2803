package cli

import (
	"fmt"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	httpx "github.com/cloudpan/pan115/internal/http"
	"github.com/cloudpan/pan115/internal/upload"
)

func newUploadCmd() *cobra.Command {
	var (
		dirID    string
		partSize int64
		resumeID string
		sha1sum  string
		direct   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file|url> [file...]",
		Short: "Upload files with fingerprint deduplication",
		Long: `Upload files to the drive. Content the server already holds is
registered without transferring any bytes. Large files transfer in
parts and can resume an interrupted session with --resume.

Arguments starting with http:// or https:// are fetched and uploaded
under the URL's filename.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}
			transfer, err := httpx.CreateTransferClient(cfg)
			if err != nil {
				return err
			}
			uploader := upload.New(client, transfer, GetLogger())

			if partSize < 0 {
				partSize = cfg.PartSize
			}
			if resumeID != "" && len(args) > 1 {
				return fmt.Errorf("--resume applies to a single file")
			}
			if sha1sum != "" && len(args) > 1 {
				return fmt.Errorf("--sha1 applies to a single file")
			}

			ctx := GetContext()
			for _, arg := range args {
				var src *upload.Source
				if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
					src, err = upload.FromURL(ctx, transfer, arg, "")
				} else {
					src, err = upload.FromFile(arg)
				}
				if err != nil {
					return err
				}

				bar := progressbar.DefaultBytes(src.Size(), src.Name())
				result, err := uploader.Upload(ctx, src, upload.Options{
					DirID:          dirID,
					PartSize:       partSize,
					ResumeUploadID: resumeID,
					Digest:         sha1sum,
					DirectUpload:   direct,
					Progress: func(done, total int64) {
						bar.Set64(done)
					},
				})
				src.Close()
				bar.Finish()
				if err != nil {
					return fmt.Errorf("uploading %s: %w", arg, err)
				}

				if result.Matched {
					fmt.Printf("%s: matched existing copy (pick code %s)\n", result.FileName, result.PickCode)
				} else {
					fmt.Printf("%s: uploaded (pick code %s)\n", result.FileName, result.PickCode)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dirID, "dir", "d", "0", "Destination directory id")
	cmd.Flags().Int64Var(&partSize, "part-size", -1, "Multipart part size in bytes (0 forces single-shot, -1 uses config)")
	cmd.Flags().StringVar(&resumeID, "resume", "", "Resume an interrupted multipart session by upload id")
	cmd.Flags().StringVar(&sha1sum, "sha1", "", "Precomputed SHA-1 of the content, skips the local hashing pass")
	cmd.Flags().BoolVar(&direct, "direct", false, "Skip deduplication and push bytes through the form endpoint")

	return cmd
}
