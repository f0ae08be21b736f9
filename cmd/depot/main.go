package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"depot/internal/app"
	"depot/internal/config"
	"depot/internal/depot"
	"depot/internal/server"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// command identifies the CLI command being run (e.g. "push", "serve").
func newApp(ctx context.Context, command string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a freshly built App and records its outcome.
func withApp(cmd *cobra.Command, command string, fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp(cmd.Context(), command)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Record(fn(cmd.Context(), a))
}

var rootCmd = &cobra.Command{
	Use:          "depot",
	Short:        "Repository storage: stage, commit and mirror files to an object store",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID:    %s\n", instanceID)
		fmt.Printf("Workspace root: %s\n", cfg.WorkspaceRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID:    %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Workspace Root: %s\n", cfg.WorkspaceRoot)
		fmt.Printf("Object Store:   %s (bucket %s)\n", cfg.ObjectStore.Type, cfg.ObjectStore.Bucket)
		fmt.Printf("Database:       %s\n", cfg.Database.Type)
		fmt.Printf("Server Addr:    %s\n", cfg.Server.Addr)
		return nil
	},
}

// repo command
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repository workspaces",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create OWNER REPO",
	Short: "Create a repository workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "repo create", func(ctx context.Context, a *app.App) error {
			if err := a.Service().CreateWorkspace(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Created %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var repoRenameCmd = &cobra.Command{
	Use:   "rename OWNER OLD NEW",
	Short: "Rename a repository locally and remotely",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "repo rename", func(ctx context.Context, a *app.App) error {
			if err := a.Service().RenameWorkspace(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Renamed %s/%s to %s/%s\n", args[0], args[1], args[0], args[2])
			return nil
		})
	},
}

var repoDeleteCmd = &cobra.Command{
	Use:   "delete OWNER REPO",
	Short: "Delete a repository locally and remotely",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "repo delete", func(ctx context.Context, a *app.App) error {
			if err := a.Service().DeleteWorkspace(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage all repositories of an owner",
}

var userRenameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename an owner locally and remotely",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "user rename", func(ctx context.Context, a *app.App) error {
			if err := a.Service().RenameUser(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %s\n", args[0], args[1])
			return nil
		})
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete OWNER",
	Short: "Delete every repository of an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "user delete", func(ctx context.Context, a *app.App) error {
			if err := a.Service().DeleteUser(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add OWNER REPO FILE",
	Short: "Stage a file",
	Long: `Stage a file. The file is copied into staging and left where it is.
With --move the original is removed once it has been staged.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		return withApp(cmd, "add", func(ctx context.Context, a *app.App) error {
			staged, err := a.StageFile(ctx, args[0], args[1], args[2], name, keepSource(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("Staged %s\n", staged)
			return nil
		})
	},
}

// keepSource reports whether add should leave the original file in place.
func keepSource(cmd *cobra.Command) bool {
	move, _ := cmd.Flags().GetBool("move")
	return !move
}

// commit command
var commitCmd = &cobra.Command{
	Use:   "commit OWNER REPO",
	Short: "Commit every staged file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")

		return withApp(cmd, "commit", func(ctx context.Context, a *app.App) error {
			c, err := a.Service().Commit(ctx, args[0], args[1], message)
			if err != nil {
				return err
			}
			fmt.Printf("Committed %s (%d file(s))\n", c.ID, len(c.Files))
			return nil
		})
	},
}

// push and pull commands
var pushCmd = &cobra.Command{
	Use:   "push OWNER REPO",
	Short: "Upload every local commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "push", func(ctx context.Context, a *app.App) error {
			res, err := a.Service().Push(ctx, args[0], args[1])
			printSync("Pushed", res)
			return err
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull OWNER REPO",
	Short: "Download every remote commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "pull", func(ctx context.Context, a *app.App) error {
			res, err := a.Service().Pull(ctx, args[0], args[1])
			printSync("Pulled", res)
			return err
		})
	},
}

func printSync(verb string, res *depot.SyncResult) {
	if res == nil {
		return
	}
	fmt.Printf("%s %d object(s) in %d commit(s)\n", verb, len(res.Objects), len(res.Commits))
	for _, key := range res.Failed {
		fmt.Printf("  failed: %s\n", key)
	}
}

// revert command
var revertCmd = &cobra.Command{
	Use:   "revert OWNER REPO COMMIT",
	Short: "Restore the files of a commit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "revert", func(ctx context.Context, a *app.App) error {
			res, err := a.Service().Revert(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d file(s) from %s into %s\n", len(res.Files), res.CommitID, res.Target)
			for _, name := range res.Skipped {
				fmt.Printf("  skipped %s: a directory with that name exists\n", name)
			}
			return nil
		})
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log OWNER REPO",
	Short: "List local commits, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "log", func(ctx context.Context, a *app.App) error {
			commits, err := a.Service().ListCommits(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Println("No commits.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Commit", "Date", "Files", "Message")
			for _, c := range commits {
				date := "-"
				if !c.Timestamp.IsZero() {
					date = c.Timestamp.Local().Format("2006-01-02 15:04:05")
				}
				table.Append(c.ID, date, fmt.Sprint(len(c.Files)), firstLine(c.Message))
			}
			table.Render()
			return nil
		})
	},
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status OWNER REPO",
	Short: "Show staged files and unpushed commits",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "status", func(ctx context.Context, a *app.App) error {
			st, err := a.Service().Status(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("%s/%s: %d commit(s), %d unpushed\n", st.Owner, st.Repository, len(st.Commits), len(st.Unpushed))
			if len(st.Staged) == 0 {
				fmt.Println("Nothing staged.")
			} else {
				fmt.Println("Staged:")
				for _, name := range st.Staged {
					fmt.Printf("  %s\n", name)
				}
			}
			if len(st.Unpushed) > 0 {
				fmt.Println("Unpushed:")
				for _, id := range st.Unpushed {
					fmt.Printf("  %s\n", id)
				}
			}
			return nil
		})
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive OWNER REPO [COMMIT]",
	Short: "Download a remote commit as a zip archive",
	Long:  "Download a remote commit as a zip archive. Without COMMIT the latest remote commit is used.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		return withApp(cmd, "archive", func(ctx context.Context, a *app.App) error {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}

			var res *depot.ArchiveResult
			if len(args) == 3 {
				res, err = a.Service().DownloadCommit(ctx, args[0], args[1], args[2], f)
			} else {
				res, err = a.Service().DownloadLatest(ctx, args[0], args[1], f)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}

			fmt.Printf("Wrote %s: commit %s, %d file(s)\n", output, res.CommitID, len(res.Entries))
			for _, key := range res.Skipped {
				fmt.Printf("  skipped: %s\n", key)
			}
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		backup, _ := cmd.Flags().GetString("backup")

		return withApp(cmd, "history", func(ctx context.Context, a *app.App) error {
			if backup != "" {
				if err := a.BackupJournal(backup); err != nil {
					return err
				}
				fmt.Printf("Journal written to %s\n", backup)
				return nil
			}

			ops, err := a.Service().GetHistory(ctx, limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("No operations recorded.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("#", "Operation", "Target", "Started", "Status", "Duration")
			for _, op := range ops {
				target := op.Owner
				if op.Repository != "" {
					target += "/" + op.Repository
				}
				duration := ""
				if op.FinishedAt.Valid {
					duration = op.FinishedAt.Time.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				table.Append(fmt.Sprint(op.ID), op.Operation, target,
					op.StartedAt.Local().Format("2006-01-02 15:04:05"), op.Status, duration)
			}
			table.Render()
			return nil
		})
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		return withApp(cmd, "serve", func(ctx context.Context, a *app.App) error {
			if addr == "" {
				addr = a.Config().Server.Addr
			}
			return server.NewServer(addr, a.Service(), a.Logger()).Run(ctx)
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// repo and user subcommands
	repoCmd.AddCommand(repoCreateCmd)
	repoCmd.AddCommand(repoRenameCmd)
	repoCmd.AddCommand(repoDeleteCmd)
	userCmd.AddCommand(userRenameCmd)
	userCmd.AddCommand(userDeleteCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("name", "", "Name to stage the file as (default: the file's base name)")
	addCmd.Flags().Bool("move", false, "Remove the source file after staging it")
	rootCmd.AddCommand(commitCmd)
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringP("output", "o", "", "Archive file to write")
	archiveCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")
	historyCmd.Flags().String("backup", "", "Write a copy of the journal database to this path instead")
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
}
