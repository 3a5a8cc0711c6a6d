// Command mangacli is the composition root: it wires config, the remote
// client, the account pool, the download engine, the library updater, and
// the export package behind pkg/command's surface, then exposes that
// surface as a cobra CLI with a live bubbletea dashboard subcommand.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/mangavault/core/pkg/accountpool"
	"github.com/mangavault/core/pkg/app"
	"github.com/mangavault/core/pkg/app/components"
	"github.com/mangavault/core/pkg/command"
	"github.com/mangavault/core/pkg/config"
	"github.com/mangavault/core/pkg/engine"
	"github.com/mangavault/core/pkg/events"
	"github.com/mangavault/core/pkg/remoteclient"
	"github.com/mangavault/core/pkg/transcode"
	"github.com/mangavault/core/pkg/updater"
)

// accountSourceRef indirects remoteclient.Client to the account pool,
// breaking the cycle between them: the client needs an AccountSource at
// construction time, but the pool's Registrar is the client itself.
type accountSourceRef struct {
	pool *accountpool.Pool
}

func (r *accountSourceRef) Acquire(ctx context.Context) (remoteclient.Account, error) {
	return r.pool.Acquire(ctx)
}

func (r *accountSourceRef) MarkLimited(ctx context.Context, acct remoteclient.Account) error {
	return r.pool.MarkLimited(ctx, acct)
}

type wiring struct {
	cfg     *config.Store
	client  *remoteclient.Client
	engine  *engine.Engine
	updater *updater.Updater
	service *command.Service
	bus     *events.Bus
}

func buildApp(appDataDir string) (*wiring, error) {
	cfg, err := config.Load(appDataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	codec := transcode.New()
	ref := &accountSourceRef{}
	client := remoteclient.New(cfg, ref, codec)

	pool, err := accountpool.Load(appDataDir, client)
	if err != nil {
		return nil, fmt.Errorf("load account pool: %w", err)
	}
	ref.pool = pool

	bus := events.New()
	eng := engine.New(cfg, client, bus)
	upd := updater.New(cfg, client, eng, bus)
	svc := command.New(cfg, client, eng, upd, nil)

	return &wiring{cfg: cfg, client: client, engine: eng, updater: upd, service: svc, bus: bus}, nil
}

func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mangavault"
	}
	return filepath.Join(home, ".mangavault")
}

func main() {
	var appDataDir string

	root := &cobra.Command{
		Use:   "mangacli",
		Short: "Manga library and download manager",
	}
	root.PersistentFlags().StringVar(&appDataDir, "app-data-dir", defaultAppDataDir(), "application data directory")

	root.AddCommand(
		dashboardCmd(&appDataDir),
		loginCmd(&appDataDir),
		searchCmd(&appDataDir),
		listCmd(&appDataDir),
		downloadCmd(&appDataDir),
		updateCmd(&appDataDir),
		exportCmd(&appDataDir),
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func dashboardCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Run the live download dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()
			return app.NewApp(a.bus).Run()
		},
	}
}

func loginCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Authenticate and persist the primary account token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()
			return a.service.Login(cmd.Context(), args[0], args[1])
		},
	}
}

func searchCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword> [page]",
		Short: "Search the remote catalog",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := 1
			if len(args) == 2 {
				parsed, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("parse page: %w", err)
				}
				page = parsed
			}
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()

			result, err := a.service.Search(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(result.List))
			for _, hit := range result.List {
				rows = append(rows, table.Row{hit.PathWord, hit.Name})
			}
			fmt.Println(components.SearchResultTable(rows))
			return nil
		},
	}
}

func listCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every downloaded comic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()

			comics, err := a.service.GetDownloadedComics()
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(comics))
			for _, c := range comics {
				total, downloaded := 0, 0
				for _, chapters := range c.Comic.Groups {
					for _, ch := range chapters {
						total++
						if ch.IsDownloaded != nil && *ch.IsDownloaded {
							downloaded++
						}
					}
				}
				rows = append(rows, table.Row{
					c.Comic.Name,
					c.Comic.PathWord,
					strconv.Itoa(total),
					strconv.Itoa(downloaded),
				})
			}
			fmt.Println(components.DownloadedComicsTable(rows))
			return nil
		},
	}
}

func downloadCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <comic-path-word> <chapter-uuid>",
		Short: "Start downloading one chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()

			full, err := a.service.GetFullComic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.service.SaveMetadata(full); err != nil {
				return err
			}
			return a.service.CreateDownloadTask(cmd.Context(), full, args[1])
		},
	}
}

func updateCmd(appDataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh every downloaded comic and enqueue new chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()
			return a.service.UpdateDownloadedComics(cmd.Context())
		},
	}
}

func exportCmd(appDataDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <cbz|pdf> <comic-path-word>",
		Short: "Export a downloaded comic's chapters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*appDataDir)
			if err != nil {
				return err
			}
			defer a.engine.Close()

			comics, err := a.service.GetDownloadedComics()
			if err != nil {
				return err
			}
			for _, c := range comics {
				if c.Comic.PathWord != args[1] {
					continue
				}
				switch args[0] {
				case "cbz":
					return a.service.ExportCBZ(c)
				case "pdf":
					return a.service.ExportPDF(c, transcode.New())
				default:
					return fmt.Errorf("unknown export format %q", args[0])
				}
			}
			return fmt.Errorf("comic %q not found among downloaded comics", args[1])
		},
	}
	return cmd
}
