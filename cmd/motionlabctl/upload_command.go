package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/flows"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	form := flows.UploadForm{XSensitivity: 50, YSensitivity: 50, OutputFormat: "bvh"}

	cmd := &cobra.Command{
		Use:   "upload <video.mp4>",
		Short: "Upload a video and extract its motion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/upload"); err != nil {
				return err
			}
			form.VideoPath = args[0]
			user := ctx.users.State().User

			progress, finish := uploadProgress(cmd.ErrOrStderr())
			out := flows.UploadFlow{API: ctx.api}.Submit(cmd.Context(), user.ID, form, progress)
			finish()
			if !out.OK() {
				return failure(out.Message, out.Errors)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, out.Redirect)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project ready: %s\n", out.Redirect.Path)
			for _, name := range out.Redirect.State.FilenamesList {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&form.ProjectName, "name", "", "Project name")
	cmd.Flags().Float64Var(&form.XSensitivity, "x-sensitivity", form.XSensitivity, "Horizontal sensitivity, 0 to 100")
	cmd.Flags().Float64Var(&form.YSensitivity, "y-sensitivity", form.YSensitivity, "Vertical sensitivity, 0 to 100")
	cmd.Flags().BoolVar(&form.Stationary, "stationary", false, "Keep the root joint in place")
	cmd.Flags().StringVar(&form.OutputFormat, "format", form.OutputFormat, "Animation format")
	return cmd
}

// uploadProgress draws a progress bar on terminals and prints nothing otherwise.
func uploadProgress(w io.Writer) (client.ProgressFunc, func()) {
	if !isTerminal(w) {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progress := func(percent int) {
		_ = bar.Set(percent)
		if percent >= 100 {
			bar.Describe("extracting motion")
		}
	}
	return progress, func() { _ = bar.Finish() }
}
