package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/adminview"
	"github.com/motionlab/backend/internal/client"
	"github.com/motionlab/backend/internal/models"
)

var errDemoReadOnly = errors.New("demo data is read-only")

type adminFlags struct {
	demo bool
	seed uint64
}

func newAdminCommand(ctx *commandContext) *cobra.Command {
	flags := &adminFlags{}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboard",
	}
	cmd.PersistentFlags().BoolVar(&flags.demo, "demo", false, "Use generated demo data instead of the backend")
	cmd.PersistentFlags().Uint64Var(&flags.seed, "seed", uint64(time.Now().UnixNano()), "Seed for demo data")

	cmd.AddCommand(newAdminStatsCommand(ctx, flags))
	cmd.AddCommand(newAdminUsersCommand(ctx, flags))
	cmd.AddCommand(newAdminProjectsCommand(ctx, flags))
	cmd.AddCommand(newAdminMetricsCommand(ctx, flags))
	cmd.AddCommand(newAdminLogsCommand(ctx, flags))
	return cmd
}

// source chooses between demo data and the backend. The choice is made once per
// command and never changes on failure.
func (f *adminFlags) source(ctx *commandContext) (adminview.Source, bool, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	demo := f.demo || cfg.Admin.Demo
	if demo {
		src, _ := adminview.Select(true, nil, f.seed)
		return src, true, nil
	}
	if err := ctx.requireRoute("/admin"); err != nil {
		return nil, false, err
	}
	return ctx.api, false, nil
}

func demoLabel(demo bool) string {
	if demo {
		return " (demo data)"
	}
	return ""
}

func newAdminStatsCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	var watch bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, demo, err := flags.source(ctx)
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			dash := &adminview.Dashboard{Source: src, Demo: demo, Limit: 10}

			if !watch {
				callCtx, cancel := ctx.callContext(cmd)
				defer cancel()
				ov := dash.Refresh(callCtx)
				if ctx.jsonOutput() {
					return writeJSON(cmd, ov)
				}
				renderOverview(cmd.OutOrStdout(), ov)
				if ov.Stats.Status == adminview.Failed {
					return errors.New(ov.Stats.Message)
				}
				return nil
			}

			if interval <= 0 {
				interval = cfg.RefreshInterval()
			}
			poller := &adminview.Poller{
				Interval: interval,
				Refresh: func(pollCtx context.Context) {
					callCtx, cancel := context.WithTimeout(pollCtx, cfg.Timeout())
					defer cancel()
					ov := dash.Refresh(callCtx)
					if pollCtx.Err() != nil {
						return
					}
					if ctx.jsonOutput() {
						_ = writeJSON(cmd, ov)
						return
					}
					renderOverview(cmd.OutOrStdout(), ov)
				},
			}
			poller.Start(cmd.Context())
			poller.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval in watch mode")
	return cmd
}

func renderOverview(w io.Writer, ov adminview.Overview) {
	stats := ov.Stats
	fmt.Fprintf(w, "Overview%s, updated %s\n", demoLabel(stats.Demo), stats.UpdatedAt.Local().Format(time.TimeOnly))
	if stats.Status == adminview.Failed {
		fmt.Fprintf(w, "error: %s\n", stats.Message)
	}
	if stats.Status != adminview.Loading && !stats.UpdatedAt.IsZero() {
		s := stats.Data
		rows := [][]string{
			{"Users", fmt.Sprintf("%d (%d active)", s.TotalUsers, s.ActiveUsers)},
			{"Projects", fmt.Sprintf("%d total, %d processing, %d completed, %d failed",
				s.TotalProjects, s.ProcessingProjects, s.CompletedProjects, s.FailedProjects)},
			{"Server load", percent(s.ServerLoad)},
			{"Memory", percent(s.MemoryUsage)},
			{"Disk", percent(s.DiskUsage)},
			{"Uptime", s.Uptime},
			{"Avg processing", s.AvgProcessingTime},
			{"Uploads today", strconv.Itoa(s.DailyUploads)},
			{"Storage used", s.StorageUsed},
		}
		if s.MetricsSource != "" {
			rows = append(rows, []string{"Metrics source", s.MetricsSource})
		}
		fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, rows, nil))
	}

	fmt.Fprintln(w, "Recent activity")
	if ov.Activity.Status == adminview.Failed {
		fmt.Fprintf(w, "error: %s\n", ov.Activity.Message)
	} else {
		rows := make([][]string, 0, len(ov.Activity.Data))
		for _, e := range ov.Activity.Data {
			rows = append(rows, []string{e.Timestamp.Local().Format(time.DateTime), e.User, e.Action})
		}
		fmt.Fprintln(w, renderTable([]string{"When", "User", "Action"}, rows, nil))
	}

	fmt.Fprintln(w, "Processing queue")
	if ov.Queue.Status == adminview.Failed {
		fmt.Fprintf(w, "error: %s\n", ov.Queue.Message)
	} else {
		rows := make([][]string, 0, len(ov.Queue.Data))
		for _, q := range ov.Queue.Data {
			rows = append(rows, []string{q.ID, q.Name, strconv.Itoa(q.Progress) + "%", q.ETA})
		}
		fmt.Fprintln(w, renderTable([]string{"ID", "Project", "Progress", "ETA"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64) + "%"
}

func newAdminUsersCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, demo, err := flags.source(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			st := adminview.Load(callCtx, demo, src.Users)
			if st.Status == adminview.Failed {
				return errors.New(st.Message)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, st.Data)
			}
			rows := make([][]string, 0, len(st.Data))
			for _, u := range st.Data {
				rows = append(rows, []string{u.ID, u.FullName(), u.Email, yesNo(u.IsAdmin), u.Status, strconv.Itoa(u.Projects)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Users%s\n", demoLabel(demo))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Email", "Admin", "Status", "Projects"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.AddCommand(newAdminUserUpdateCommand(ctx, flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account and everything it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := flags.liveClient(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := api.DeleteUser(callCtx, args[0])
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// liveClient returns the backend client for commands that change data.
func (f *adminFlags) liveClient(ctx *commandContext) (*client.Client, error) {
	src, demo, err := f.source(ctx)
	if err != nil {
		return nil, err
	}
	if demo {
		return nil, errDemoReadOnly
	}
	return src.(*client.Client), nil
}

func newAdminUserUpdateCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	var firstName, lastName, email string
	var isAdmin, verified bool

	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Change an account's name, email or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update models.UserUpdate
			set := cmd.Flags().Changed
			if set("first-name") {
				update.FirstName = &firstName
			}
			if set("last-name") {
				update.LastName = &lastName
			}
			if set("email") {
				update.Email = &email
			}
			if set("admin") {
				update.IsAdmin = &isAdmin
			}
			if set("verified") {
				update.EmailVerified = &verified
			}
			if update == (models.UserUpdate{}) {
				return errors.New("nothing to update; pass at least one field flag")
			}

			api, err := flags.liveClient(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := api.UpdateUser(callCtx, args[0], update)
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", resp.Data.Email, resp.Data.FullName())
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant or revoke admin access")
	cmd.Flags().BoolVar(&verified, "verified", false, "Mark the email verified")
	return cmd
}

func newAdminProjectsCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List every project",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, demo, err := flags.source(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			st := adminview.Load(callCtx, demo, src.Projects)
			if st.Status == adminview.Failed {
				return errors.New(st.Message)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, st.Data)
			}
			rows := make([][]string, 0, len(st.Data))
			for _, p := range st.Data {
				rows = append(rows, []string{p.ID, p.Name, p.Owner, p.Status, p.CreationDate})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Projects%s\n", demoLabel(demo))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Owner", "Status", "Created"}, rows, nil))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete any user's project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := flags.liveClient(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := api.DeleteAdminProject(callCtx, args[0])
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newAdminMetricsCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	var timeRange string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show system metrics for a day, week or month",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, demo, err := flags.source(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			st := adminview.Load(callCtx, demo, func(c context.Context) client.Response[models.SystemMetrics] {
				return src.SystemMetrics(c, timeRange)
			})
			if st.Status == adminview.Failed {
				return errors.New(st.Message)
			}
			m := st.Data
			if ctx.jsonOutput() {
				return writeJSON(cmd, m)
			}
			rows := make([][]string, 0, len(m.Labels))
			for i, label := range m.Labels {
				rows = append(rows, []string{label, seriesAt(m.CPU, i), seriesAt(m.Memory, i), seriesAt(m.ProcessingHistory, i), seriesAt(m.ErrorRate, i)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "System metrics, %s%s (source: %s)\n", m.TimeRange, demoLabel(demo), m.Source)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Period", "CPU %", "Memory %", "Processed", "Errors"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Disk %s, estimated processing time %s\n", percent(m.DiskUsage), m.AvgProcessTime)
			return nil
		},
	}
	cmd.Flags().StringVar(&timeRange, "range", "day", "day, week or month")
	return cmd
}

func seriesAt(series []float64, i int) string {
	if i >= len(series) {
		return ""
	}
	return strconv.FormatFloat(series[i], 'f', 0, 64)
}

func newAdminLogsCommand(ctx *commandContext, flags *adminFlags) *cobra.Command {
	var filter client.LogFilter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent server logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, demo, err := flags.source(ctx)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			st := adminview.Load(callCtx, demo, func(c context.Context) client.Response[[]models.LogEntry] {
				return src.Logs(c, filter)
			})
			if st.Status == adminview.Failed {
				return errors.New(st.Message)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, st.Data)
			}
			rows := make([][]string, 0, len(st.Data))
			for _, e := range st.Data {
				rows = append(rows, []string{e.Timestamp, strings.ToUpper(e.Level), e.Service, e.Message})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logs%s\n", demoLabel(demo))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Time", "Level", "Service", "Message"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "Only this service, such as auth or processor")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Only this level: debug, info, warning or error")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "Maximum entries")
	return cmd
}
