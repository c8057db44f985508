package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relief-network/coordinator/internal/client"
	"github.com/relief-network/coordinator/internal/middleware"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the database schema",
		RunE:  runMigrate,
	}

	cmd.Flags().Bool("down", false, "roll back every migration")
	cmd.Flags().String("path", "", "migrations directory (default is the embedded schema)")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	down, _ := cmd.Flags().GetBool("down")
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	if down {
		if err := db.MigrateDown(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
		return nil
	}

	if err := db.Migrate(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the lookup cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache entries",
		RunE:  runCachePurge,
	})

	return cmd
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PurgeExpiredCache(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired cache entries\n", n)
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured JWT secret",
		RunE:  runToken,
	}

	cmd.Flags().String("user", "", "user ID claim (required)")
	cmd.Flags().String("role", "", "role claim, e.g. admin")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := middleware.GenerateToken(user, role, middleware.JWTConfig{
		Secret:     cfg.Auth.JWTSecret,
		Expiration: ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the disaster list live from a running server",
		RunE:  runWatch,
	}

	cmd.Flags().String("server", "http://localhost:3001", "coordinator base URL")
	cmd.Flags().String("tag", "", "only show disasters carrying this tag")
	cmd.Flags().String("user", "", "X-User-ID to send")
	cmd.Flags().String("role", "", "X-User-Role to send")
	cmd.Flags().String("token", "", "bearer token to send")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	tag, _ := cmd.Flags().GetString("tag")
	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	token, _ := cmd.Flags().GetString("token")

	opts := []client.Option{client.WithIdentity(user, role)}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	c := client.New(server, opts...)

	out := cmd.OutOrStdout()
	w := client.NewWatcher(c, logger,
		client.WithTag(tag),
		client.OnChange(func(snap *client.Snapshot, ev client.Event) {
			fmt.Fprintf(out, "\n[%s] %s: %d disasters\n", snap.FetchedAt.Format(time.RFC3339), ev.Event, len(snap.Disasters))
			for _, d := range snap.Disasters {
				fmt.Fprintf(out, "  %s  %-32s  %-24s  %s\n", d.ID, d.Title, d.LocationName, strings.Join(d.Tags, ","))
			}
		}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}

