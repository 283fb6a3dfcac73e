package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillbox/quillbox/internal/server"
	"github.com/quillbox/quillbox/internal/version"
)

var (
	home, _           = os.UserHomeDir()
	defaultContentDir = filepath.Join(home, "QuillBox")
	configFileName    = "server"
)

var cyan = color.New(color.FgHiCyan).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "quillboxd",
	Short:   "QuillBox Sync Server",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &server.Config{
			HTTP: server.HTTPConfig{
				Addr:      viper.GetString("addr"),
				CertFile:  viper.GetString("cert_file"),
				KeyFile:   viper.GetString("key_file"),
				RateLimit: viper.GetString("rate_limit"),
			},
			Data: server.DataConfig{
				ContentDir:    viper.GetString("content_dir"),
				DataDir:       viper.GetString("data_dir"),
				MaxUploadSize: viper.GetInt64("max_upload_size"),
				FrontMatter:   viper.GetStringMapString("front_matter"),
			},
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		fmt.Println(cyan(version.DetailedWithApp()))

		s, err := server.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("content", "d", defaultContentDir, "Content root directory")
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("cert", "", "Path to the TLS certificate file")
	rootCmd.Flags().String("key", "", "Path to the TLS key file")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
}

func main() {
	// dev convenience, missing file is fine
	godotenv.Load()

	handler := slog.Handler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".quillbox"))
		viper.AddConfigPath(filepath.Join(home, ".config/quillbox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("QUILLBOX")
	viper.AutomaticEnv()

	viper.BindPFlag("content_dir", cmd.Flags().Lookup("content"))
	viper.BindPFlag("addr", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("cert_file", cmd.Flags().Lookup("cert"))
	viper.BindPFlag("key_file", cmd.Flags().Lookup("key"))

	viper.SetDefault("rate_limit", server.DefaultRateLimit)
	viper.SetDefault("max_upload_size", server.DefaultMaxUploadSize)

	return nil
}
