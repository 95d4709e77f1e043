package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/rediscache"
	"github.com/AnyUserName/tgimg-render/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP preview API",
	Long: `Serves the URL builder and placeholder decoder over HTTP:

  GET  /health
  GET  /v1/url?src=&width=&height=&fit=&extra=&bg=&dpr=
  GET  /v1/placeholder?hash=   (or /v1/placeholder/<url-safe hash>)
  POST /v1/render              widget props → rendered layers

Logs are JSON.  Stops gracefully on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.SetFormatter(&logrus.JSONFormatter{})
	if !verbose {
		log.SetLevel(logrus.InfoLevel)
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rc, ok := cfg.ThumbhashImg.Cache.(*rediscache.Cache); ok {
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, serving from the local tier")
		}
	}

	return server.New(cfg).Run(ctx)
}
