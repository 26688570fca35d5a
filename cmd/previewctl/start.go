package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/previewlabs/previewctl/internal/orchestrator"
	"github.com/previewlabs/previewctl/internal/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a preview sandbox for a project",
	Long: `Start a preview sandbox and wait until its backend is serving traffic.

The project directory is uploaded to the orchestrator, which generates a
backend (unless --no-backend is given), builds an image, deploys a
container, and health-checks it. Progress is printed per stage.

If the sandbox infrastructure is unavailable the preview falls back to
mock mode: no real backend is wired up and consumers must simulate
responses.

Examples:
  # Start a preview for the current directory
  previewctl start --name my-shop

  # Custom TTL and explicit backend sources
  previewctl start --name my-shop --dir ./site --backend-dir ./api --ttl 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		dir, _ := cmd.Flags().GetString("dir")
		backendDir, _ := cmd.Flags().GetString("backend-dir")
		ttl, _ := cmd.Flags().GetInt("ttl")
		noBackend, _ := cmd.Flags().GetBool("no-backend")

		if ttl <= 0 {
			ttl = cfg.TTLMinutes
		}

		projectFiles, err := loadProjectFiles(dir)
		if err != nil {
			return fmt.Errorf("failed to read project files: %w", err)
		}
		var backendFiles map[string]string
		if backendDir != "" {
			backendFiles, err = loadProjectFiles(backendDir)
			if err != nil {
				return fmt.Errorf("failed to read backend files: %w", err)
			}
		}

		return runStart(cmd.Context(), name, projectFiles, backendFiles, ttl, !noBackend)
	},
}

func init() {
	startCmd.Flags().String("name", "", "Project name (required)")
	startCmd.Flags().String("dir", ".", "Project directory to upload")
	startCmd.Flags().String("backend-dir", "", "Directory with pre-written backend files")
	startCmd.Flags().Int("ttl", 0, "Sandbox time-to-live in minutes (default from config)")
	startCmd.Flags().Bool("no-backend", false, "Skip backend generation")
	startCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(startCmd)
}

func runStart(ctx context.Context, name string, projectFiles, backendFiles map[string]string, ttl int, generateBackend bool) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	o := orchestrator.New(client)
	result := o.StartPreview(ctx, orchestrator.StartOptions{
		ProjectName:     name,
		ProjectFiles:    projectFiles,
		BackendFiles:    backendFiles,
		UserID:          cfg.UserID,
		TTLMinutes:      ttl,
		GenerateBackend: generateBackend,
		PollInterval:    cfg.PollInterval(),
		MaxWait:         cfg.MaxWait(),
		OnStageChange: func(stage types.Stage, message string) {
			if message == "" {
				message = strings.ReplaceAll(string(stage), "_", " ")
			}
			fmt.Printf("  %s %s\n", time.Now().Format("15:04:05"), message)
		},
		OnProgress: func(stage types.Stage, overall int, message string) {
			if flagVerbose {
				fmt.Printf("    [%3d%%] %s\n", overall, message)
			}
		},
	})

	if result.VersionWarning != "" {
		fmt.Printf("%s %s\n", yellow("!"), result.VersionWarning)
	}

	if !result.OK() {
		fmt.Printf("%s preview degraded to mock mode: %s\n", red("✗"), result.MockReason)
		fmt.Printf("  session: %s\n", result.Session.ID)
		return fmt.Errorf("no real backend available")
	}

	fmt.Printf("%s preview ready\n", green("✓"))
	fmt.Printf("  session: %s\n", result.Session.ID)
	fmt.Printf("  backend: %s\n", result.Session.BackendAddress)
	fmt.Printf("  ttl:     %dm\n", result.Session.TTLMinutes)
	return nil
}

// loadProjectFiles reads every regular file under dir into a path->content
// map, skipping dotfiles and anything that does not look like text.
func loadProjectFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found under %s", dir)
	}
	return files, nil
}
