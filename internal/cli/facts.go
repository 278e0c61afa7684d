package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwizi/rescue-console/internal/config"
	"github.com/dwizi/rescue-console/internal/store"
)

func newFactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Manage the canned answers served for unmatched prefixed words",
	}
	cmd.AddCommand(newFactsAddCommand())
	cmd.AddCommand(newFactsListCommand())
	cmd.AddCommand(newFactsRemoveCommand())
	return cmd
}

func newFactsAddCommand() *cobra.Command {
	var (
		lang   string
		author string
	)
	cmd := &cobra.Command{
		Use:   "add <name> <message...>",
		Short: "Create or replace a fact",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFactStore(cmd.Context(), func(ctx context.Context, facts *store.Store) error {
				fact := store.Fact{
					Name:    args[0],
					Lang:    lang,
					Message: strings.Join(args[1:], " "),
					Author:  author,
				}
				if err := facts.PutFact(ctx, fact); err != nil {
					return err
				}
				cmd.Printf("saved fact %s (%s)\n", strings.ToLower(args[0]), strings.ToLower(lang))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "language code of the message")
	cmd.Flags().StringVar(&author, "author", os.Getenv("USER"), "author recorded with the fact")
	return cmd
}

func newFactsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every fact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFactStore(cmd.Context(), func(ctx context.Context, facts *store.Store) error {
				items, err := facts.ListFacts(ctx)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					cmd.Println("no facts")
					return nil
				}
				writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(writer, "NAME\tLANG\tAUTHOR\tMESSAGE")
				for _, item := range items {
					fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", item.Name, item.Lang, fallback(item.Author, "-"), item.Message)
				}
				return writer.Flush()
			})
		},
	}
}

func newFactsRemoveCommand() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a fact in one language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFactStore(cmd.Context(), func(ctx context.Context, facts *store.Store) error {
				err := facts.DeleteFact(ctx, args[0], lang)
				if errors.Is(err, store.ErrFactNotFound) {
					return fmt.Errorf("fact %s (%s) does not exist", args[0], lang)
				}
				if err != nil {
					return err
				}
				cmd.Printf("removed fact %s (%s)\n", strings.ToLower(args[0]), strings.ToLower(lang))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "language code of the message")
	return cmd
}

func withFactStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.FromEnv()
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	facts, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer facts.Close()
	if err := facts.AutoMigrate(ctx); err != nil {
		return err
	}
	return fn(ctx, facts)
}

func fallback(value, alternative string) string {
	if strings.TrimSpace(value) == "" {
		return alternative
	}
	return value
}
