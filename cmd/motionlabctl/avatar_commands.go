package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/flows"
)

func newAvatarsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatars",
		Short: "List and manage your avatars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAvatars(cmd, ctx)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your avatars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAvatars(cmd, ctx)
		},
	})
	cmd.AddCommand(newAvatarCreateCommand(ctx))
	cmd.AddCommand(newAvatarDeleteCommand(ctx))
	return cmd
}

func listAvatars(cmd *cobra.Command, ctx *commandContext) error {
	if err := ctx.requireRoute("/profile/avatars"); err != nil {
		return err
	}
	store, err := ctx.avatarStore()
	if err != nil {
		return err
	}
	callCtx, cancel := ctx.callContext(cmd)
	defer cancel()

	if !store.FetchAvatars(callCtx) {
		return errors.New(store.State().Error)
	}
	avatars := store.State().Avatars
	for i := range avatars {
		avatars[i].URL = ctx.api.AssetURL(avatars[i].URL)
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, avatars)
	}
	if len(avatars) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No avatars yet")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Created", "URL"}, avatarRows(avatars), nil))
	return nil
}

func avatarRows(avatars []client.Avatar) [][]string {
	rows := make([][]string, 0, len(avatars))
	for _, a := range avatars {
		rows = append(rows, []string{a.ID, a.Name, a.CreationDate.Local().Format(time.DateTime), a.URL})
	}
	return rows
}

func newAvatarCreateCommand(ctx *commandContext) *cobra.Command {
	var name, exportURL, exportFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save an avatar exported by the avatar creator",
		Long: "Save an avatar exported by the avatar creator. Pass the GLB link with --url, or the " +
			"creator's export event with --export-file (use - for stdin).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (exportURL == "") == (exportFile == "") {
				return errors.New("exactly one of --url or --export-file is required")
			}
			if err := ctx.requireRoute("/profile/avatars/create"); err != nil {
				return err
			}
			link := exportURL
			if exportFile != "" {
				payload, err := readExport(cmd.InOrStdin(), exportFile)
				if err != nil {
					return err
				}
				if link, err = flows.ParseAvatarExport(payload); err != nil {
					return err
				}
			}

			store, err := ctx.avatarStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			out := flows.AvatarFlow{Avatars: store}.Complete(callCtx, name, link)
			if !out.OK() {
				return failure(out.Message, out.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved avatar %q\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Avatar name")
	cmd.Flags().StringVar(&exportURL, "url", "", "Exported GLB URL")
	cmd.Flags().StringVar(&exportFile, "export-file", "", "File holding the export event JSON")
	return cmd
}

func readExport(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(stdin, 1<<20))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}

func newAvatarDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <avatar-id>",
		Short: "Delete an avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/profile/avatars"); err != nil {
				return err
			}
			store, err := ctx.avatarStore()
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			if !store.DeleteAvatar(callCtx, args[0]) {
				return errors.New(store.State().Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted avatar %s\n", args[0])
			return nil
		},
	}
}
