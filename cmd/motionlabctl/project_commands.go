package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List and manage your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProjects(cmd, ctx)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProjects(cmd, ctx)
		},
	})
	cmd.AddCommand(newProjectShowCommand(ctx))
	cmd.AddCommand(newProjectDeleteCommand(ctx))
	cmd.AddCommand(newProjectBVHCommand(ctx))
	return cmd
}

func listProjects(cmd *cobra.Command, ctx *commandContext) error {
	if err := ctx.requireRoute("/projects"); err != nil {
		return err
	}
	store, err := ctx.projectStore()
	if err != nil {
		return err
	}
	callCtx, cancel := ctx.callContext(cmd)
	defer cancel()

	if !store.FetchProjects(callCtx) {
		return errors.New(store.State().Error)
	}
	projects := store.State().Projects
	if ctx.jsonOutput() {
		return writeJSON(cmd, projects)
	}
	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects yet; upload a video with `motionlabctl upload`")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Name", "Status", "Created"},
		projectRows(projects),
		nil,
	))
	return nil
}

func projectRows(projects []models.Project) [][]string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.ID, p.Name, p.Status, p.CreationDate.Local().Format(time.DateTime)})
	}
	return rows
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/project/" + args[0]); err != nil {
				return err
			}
			store, err := ctx.projectStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			detail, ok := store.FetchProject(callCtx, args[0])
			if !ok {
				return errors.New(store.State().Error)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, detail)
			}
			rows := [][]string{
				{"ID", detail.ID},
				{"Name", detail.Name},
				{"Status", detail.Status},
				{"X sensitivity", strconv.FormatFloat(detail.XSensitivity, 'f', 2, 64)},
				{"Y sensitivity", strconv.FormatFloat(detail.YSensitivity, 'f', 2, 64)},
				{"Created", detail.CreationDate.Local().Format(time.DateTime)},
				{"Animations", strings.Join(detail.BVHFilenames, ", ")},
			}
			if detail.FailureReason != "" {
				rows = append(rows, []string{"Failure", detail.FailureReason})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and its animations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/projects"); err != nil {
				return err
			}
			store, err := ctx.projectStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			if !store.DeleteProject(callCtx, args[0]) {
				return errors.New(store.State().Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	}
}

func newProjectBVHCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bvh <project-id>",
		Short: "List a project's animations with download links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/project/" + args[0]); err != nil {
				return err
			}
			store, err := ctx.projectStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := store.BVHFilenames(callCtx, args[0])
			if !resp.Success {
				return failure(store.State().Error, resp.Errors)
			}
			links := resp.Data
			for i := range links {
				links[i].URL = ctx.api.AssetURL(links[i].URL)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, links)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Frames", "Seconds", "URL"},
				bvhRows(links),
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func bvhRows(links []client.BVHLink) [][]string {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{l.Filename, strconv.Itoa(l.Frames), strconv.FormatFloat(l.Duration, 'f', 2, 64), l.URL})
	}
	return rows
}

func newRetargetCommand(ctx *commandContext) *cobra.Command {
	var req client.RetargetRequest

	cmd := &cobra.Command{
		Use:   "retarget",
		Short: "Apply an animation to an avatar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ProjectID == "" || req.AvatarID == "" || req.BVHFilename == "" {
				return errors.New("--project, --avatar and --bvh are required")
			}
			if err := ctx.requireRoute("/project/" + req.ProjectID); err != nil {
				return err
			}
			store, err := ctx.projectStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := store.CreateRetargetedAvatar(callCtx, req)
			if !resp.Success {
				return failure(store.State().Error, resp.Errors)
			}
			out := resp.Data
			out.URL = ctx.api.AssetURL(out.URL)
			if ctx.jsonOutput() {
				return writeJSON(cmd, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retargeted avatar %s ready until %s\n%s\n",
				out.ID, out.ExpiresAt.Local().Format(time.DateTime), out.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ProjectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&req.AvatarID, "avatar", "", "Avatar ID")
	cmd.Flags().StringVar(&req.BVHFilename, "bvh", "", "Animation file name")

	cmd.AddCommand(&cobra.Command{
		Use:   "list <project-id>",
		Short: "List retargeted avatars of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/project/" + args[0]); err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := ctx.api.GetRetargetedAvatars(callCtx, args[0])
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp.Data)
			}
			rows := make([][]string, 0, len(resp.Data))
			for _, r := range resp.Data {
				rows = append(rows, []string{r.ID, r.AvatarID, r.BVHFilename, r.ExpiresAt.Local().Format(time.DateTime)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Avatar", "Animation", "Expires"}, rows, nil))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <retargeted-id>",
		Short: "Delete a retargeted avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/projects"); err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := ctx.api.DeleteRetargetedAvatar(callCtx, args[0])
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted retargeted avatar %s\n", args[0])
			return nil
		},
	})
	return cmd
}
