package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recomo/internal/lifecycle"
	"recomo/internal/playback"
	"recomo/internal/rapexport"
	"recomo/internal/sfm"
	"recomo/internal/viewer"
)

type sceneFlags struct {
	sourceKey string
	projectID string
	videoURL  string
}

func (f *sceneFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.sourceKey, "source-key", "k", "", "Template key used for the project cache")
	cmd.Flags().StringVarP(&f.projectID, "project", "p", "", "Existing reconstruction project id")
	cmd.Flags().StringVarP(&f.videoURL, "video", "v", "", "Reference video URL or local path")
}

func (f *sceneFlags) request() (lifecycle.Request, error) {
	req := lifecycle.Request{
		SourceKey: strings.TrimSpace(f.sourceKey),
		ProjectID: strings.TrimSpace(f.projectID),
		VideoURL:  strings.TrimSpace(f.videoURL),
	}
	if req.SourceKey == "" && req.ProjectID == "" && req.VideoURL == "" {
		return req, errors.New("one of --source-key, --project or --video is required")
	}
	if req.SourceKey == "" && req.VideoURL == "" {
		req.SourceKey = req.ProjectID
	}
	return req, nil
}

func newSceneCommand(ctx *commandContext) *cobra.Command {
	sceneCmd := &cobra.Command{
		Use:   "scene",
		Short: "Prepare, inspect, play and export reconstructed scenes",
	}

	sceneCmd.AddCommand(newSceneFetchCommand(ctx))
	sceneCmd.AddCommand(newSceneInfoCommand(ctx))
	sceneCmd.AddCommand(newScenePlayCommand(ctx))
	sceneCmd.AddCommand(newSceneExportCommand(ctx))

	return sceneCmd
}

func statusPrinter(out io.Writer) func(lifecycle.Update) {
	return func(update lifecycle.Update) {
		id := update.ProjectID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", update.Status, id, update.Message)
	}
}

// loadScene runs the full project lifecycle for req and returns the loaded scene.
func loadScene(cmd *cobra.Command, ctx *commandContext, req lifecycle.Request, quiet bool) (*lifecycle.Result, error) {
	var onStatus func(lifecycle.Update)
	if !quiet {
		onStatus = statusPrinter(cmd.ErrOrStderr())
	}
	opts, closeCache, err := ctx.lifecycleOptions(onStatus)
	if err != nil {
		return nil, err
	}
	defer closeCache()

	manager, err := lifecycle.New(opts)
	if err != nil {
		return nil, err
	}
	defer manager.Close()
	return manager.EnsureDataReady(cmd.Context(), req)
}

type sceneSummary struct {
	ProjectID string  `json:"project_id"`
	SourceKey string  `json:"source_key"`
	Status    string  `json:"status"`
	Points    int     `json:"points"`
	Cameras   int     `json:"cameras"`
	Duration  float64 `json:"duration_seconds"`
	Decode    string  `json:"decode"`
}

func summarize(result *lifecycle.Result) sceneSummary {
	return sceneSummary{
		ProjectID: result.Project.ID,
		SourceKey: result.Project.SourceKey,
		Status:    string(result.Project.Status),
		Points:    result.Cloud.Len(),
		Cameras:   result.Path.Len(),
		Duration:  result.Path.Duration(),
		Decode:    result.DecodeKind.String(),
	}
}

func newSceneFetchCommand(ctx *commandContext) *cobra.Command {
	var flags sceneFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Create or resume a reconstruction and load its scene",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			result, err := loadScene(cmd, ctx, req, asJSON)
			if err != nil {
				return err
			}
			summary := summarize(result)
			if asJSON {
				return writeJSON(cmd, summary)
			}
			rows := [][]string{
				{"Project", summary.ProjectID},
				{"Source key", summary.SourceKey},
				{"Status", summary.Status},
				{"Points", fmt.Sprintf("%d", summary.Points)},
				{"Cameras", fmt.Sprintf("%d", summary.Cameras)},
				{"Duration", playback.FormatTime(summary.Duration)},
				{"Decode", summary.Decode},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSceneInfoCommand(ctx *commandContext) *cobra.Command {
	var flags sceneFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the remote status of a cached or given project without loading it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			projectID := req.ProjectID
			if projectID == "" {
				cache, closeCache, err := ctx.openCache()
				if err != nil {
					return err
				}
				id, ok := cache.GetProjectID(req.SourceKey)
				closeCache()
				if !ok {
					return fmt.Errorf("no cached project for %q; run `recomo scene fetch` first", req.SourceKey)
				}
				projectID = id
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.GetStatus(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"project_id":       projectID,
					"status":           status.Derive(),
					"status_text":      status.Text,
					"code":             status.Code,
					"has_pointcloud":   status.HasPointCloud,
					"has_camera_poses": status.HasCameraPoses,
					"missing":          sfm.IsMissingProject(status),
				})
			}
			rows := [][]string{
				{"Project", projectID},
				{"Status", string(status.Derive())},
				{"Service text", status.Text},
				{"Point cloud", yesNo(status.HasPointCloud)},
				{"Camera poses", yesNo(status.HasCameraPoses)},
			}
			if sfm.IsMissingProject(status) {
				rows = append(rows, []string{"Hint", "project is gone; `recomo scene fetch` will recreate it"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newScenePlayCommand(ctx *commandContext) *cobra.Command {
	var flags sceneFlags
	var limit, every time.Duration
	var sample, rebuild bool
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a scene headlessly and print the camera marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req lifecycle.Request
			if !sample {
				var err error
				if req, err = flags.request(); err != nil {
					return err
				}
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, closeCache, err := ctx.lifecycleOptions(statusPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closeCache()

			settled := make(chan viewer.ViewState, 1)
			v, err := viewer.New(viewer.Options{
				Lifecycle:     opts,
				FrameInterval: cfg.FrameInterval(),
				Logger:        ctx.log(),
				OnChange: func(st viewer.ViewState) {
					if st.Phase == viewer.PhaseLoading {
						return
					}
					select {
					case settled <- st:
					default:
					}
				},
			})
			if err != nil {
				return err
			}
			defer v.Close()

			switch {
			case sample:
				v.UseSample()
			case rebuild:
				v.Open(cmd.Context(), req)
				if err := waitReady(cmd.Context(), settled); err != nil {
					return err
				}
				if err := v.Rebuild(); err != nil {
					return err
				}
			default:
				v.Open(cmd.Context(), req)
			}
			if err := waitReady(cmd.Context(), settled); err != nil {
				return err
			}
			return playScene(cmd.Context(), cmd.OutOrStdout(), v, limit, every)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&limit, "for", 0, "Stop after this long (default: until the path ends)")
	cmd.Flags().DurationVar(&every, "every", time.Second, "Progress report interval")
	cmd.Flags().BoolVar(&sample, "sample", false, "Play synthetic sample data instead of a project")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the cached project and reconstruct again")
	return cmd
}

func waitReady(ctx context.Context, settled <-chan viewer.ViewState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case st := <-settled:
		if st.Phase == viewer.PhaseError {
			if st.Recoverable {
				return fmt.Errorf("%s (retry may succeed)", st.Message)
			}
			return errors.New(st.Message)
		}
		return nil
	}
}

func playScene(ctx context.Context, out io.Writer, v *viewer.Viewer, limit, every time.Duration) error {
	st := v.State()
	fmt.Fprintf(out, "Scene: %d points, %d cameras\n", st.Stats.Points, st.Stats.Cameras)

	player := v.Player()
	player.Play()
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	report := func() {
		state := player.State()
		line := fmt.Sprintf("%s / %s", playback.FormatTime(state.CurrentTime), playback.FormatTime(state.Duration))
		if s, ok := player.Sample(); ok {
			p := s.Position
			line += fmt.Sprintf("  pose %d/%d  marker (%.3f, %.3f, %.3f)", s.Index+1, player.Timeline().Len(), p.X(), p.Y(), p.Z())
		}
		fmt.Fprintln(out, line)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			player.Pause()
			report()
			return nil
		case <-ticker.C:
			report()
			if player.Ended() {
				return nil
			}
		}
	}
}

func newSceneExportCommand(ctx *commandContext) *cobra.Command {
	var flags sceneFlags
	var outDir, name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a scene as a RAP recording with a PLY point cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			result, err := loadScene(cmd, ctx, req, false)
			if err != nil {
				return err
			}
			files, err := rapexport.WriteFiles(outDir, name, rapexport.Scene{
				ProjectID: result.Project.ID,
				Name:      result.Project.SourceKey,
				Cloud:     result.Cloud,
				Path:      result.Path,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", files.Recording)
			if files.Cloud != "" {
				fmt.Fprintf(out, "Wrote %s\n", files.Cloud)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&name, "name", "", "Base file name (default: project id)")
	return cmd
}
