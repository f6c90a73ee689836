package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dropDatabas3/socialauth/internal/app"
	"github.com/dropDatabas3/socialauth/internal/config"
	"github.com/dropDatabas3/socialauth/internal/oauth"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath = envOr("CONFIG_PATH", "config.yaml")
		envFile    = ".env"
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "socialauth",
		Short:         "Sign-in social (OAuth2/OIDC) con PKCE y sesiones",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional: sin archivo seguimos con el entorno del sistema.
			_ = godotenv.Load(envFile)

			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if c.App.Version == "" {
				c.App.Version = version
			}
			logger.Init(logger.Config{
				Env:         c.App.Env,
				Level:       c.Log.Level,
				ServiceName: c.App.ServiceName,
				Version:     c.App.Version,
			})
			cfg = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Ruta del config YAML (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "Archivo .env a cargar si existe")

	root.AddCommand(newServeCmd(&cfg), newProvidersCmd(&cfg))
	return root
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.ToContext(ctx, logger.L())

			a, err := app.Build(ctx, *cfg)
			if err != nil {
				logger.L().Error("startup failed", logger.Err(err))
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.L().Warn("cache close failed", logger.Err(err))
				}
			}()
			return a.Serve(ctx)
		},
	}
}

type providerReport struct {
	ID       string `json:"id"`
	Ready    bool   `json:"ready"`
	Issuer   string `json:"issuer,omitempty"`
	AuthURL  string `json:"authorization_endpoint,omitempty"`
	TokenURL string `json:"token_endpoint,omitempty"`
	UserInfo string `json:"userinfo_endpoint,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newProvidersCmd(cfg **config.Config) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Lista los providers habilitados y el resultado de su inicialización",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.ToContext(cmd.Context(), logger.L())
			reports, err := inspectProviders(ctx, *cfg)
			if err != nil {
				return err
			}
			return printReports(cmd.OutOrStdout(), out, reports)
		},
	}
	cmd.Flags().StringVar(&out, "out", "text", "Formato de salida: json|text")
	return cmd
}

// inspectProviders arma registry + factory sin levantar cache ni HTTP y
// reporta qué providers quedaron listos.
func inspectProviders(ctx context.Context, c *config.Config) ([]providerReport, error) {
	registry, err := oauth.NewRegistry(c.ProviderConfigs())
	if err != nil {
		return nil, err
	}
	factory := oauth.NewFactory(oauth.FactoryDeps{
		Registry:         registry,
		HTTPClient:       &http.Client{Timeout: c.HTTPTimeout()},
		DiscoveryTimeout: c.DiscoveryTimeout(),
	})
	res := factory.InitAll(ctx)

	reports := make([]providerReport, 0, len(registry.IDs()))
	for _, id := range registry.IDs() {
		r := providerReport{ID: id}
		if rc, err := factory.GetClient(id); err == nil {
			r.Ready = true
			r.Issuer = rc.Config.Issuer
			r.AuthURL = rc.AuthURL
			r.TokenURL = rc.TokenURL
			r.UserInfo = rc.UserInfoURL
		} else if ferr, ok := res.Failed[id]; ok {
			r.Error = ferr.Error()
		} else {
			r.Error = err.Error()
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

func printReports(w io.Writer, out string, reports []providerReport) error {
	if out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	if len(reports) == 0 {
		fmt.Fprintln(w, "no providers enabled")
		return nil
	}
	for _, r := range reports {
		if r.Ready {
			fmt.Fprintf(w, "%-10s ready    auth=%s token=%s userinfo=%s\n", r.ID, r.AuthURL, r.TokenURL, r.UserInfo)
			continue
		}
		fmt.Fprintf(w, "%-10s failed   %s\n", r.ID, r.Error)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
