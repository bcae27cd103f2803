package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudpan/pan115/internal/config"
)

const configTemplate = `[account]
; Session cookie, e.g. UID=...; CID=...; SEID=...
cookie =

[upload]
; Multipart part size in bytes
part_size = 10485760

[proxy]
; mode: no-proxy, system, or basic
mode = system
;host =
;port = 8080
;user =
;password =
;no_proxy =
`

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the pan115 configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.DefaultPath())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file template",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := config.EnsureConfigDir(); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cookieState := "not set"
			if cfg.Cookie != "" {
				cookieState = "set"
			}
			fmt.Printf("cookie:     %s\n", cookieState)
			fmt.Printf("part_size:  %d\n", cfg.PartSize)
			fmt.Printf("proxy mode: %s\n", cfg.ProxyMode)
			return nil
		},
	})

	return cmd
}
