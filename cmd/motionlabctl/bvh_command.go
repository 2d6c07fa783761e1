package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/bvh"
)

// locationLoader reads http(s) locations over the network and everything else from disk.
type locationLoader struct {
	http bvh.HTTPLoader
	file bvh.FileLoader
}

func (l locationLoader) Load(ctx context.Context, location string) (*bvh.Clip, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.http.Load(ctx, location)
	}
	return l.file.Load(ctx, location)
}

func newBVHCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "bvh",
		Short:       "Inspect and preview BVH animations",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newBVHInspectCommand())
	cmd.AddCommand(newBVHPlayCommand())
	return cmd
}

func newBVHInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file-or-url>",
		Short: "Print a clip's skeleton and length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clip, err := locationLoader{}.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d joints, %d channels, %d frames at %.4fs (%.2fs)\n",
				len(clip.Joints), clip.Channels, clip.Frames, clip.FrameTime, clip.Duration())
			printJoint(out, clip.Root, 0)
			return nil
		},
	}
}

func printJoint(w io.Writer, j *bvh.Joint, depth int) {
	if j == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	if j.EndSite {
		fmt.Fprintf(w, "%sEnd Site\n", indent)
	} else {
		fmt.Fprintf(w, "%s%s [%s]\n", indent, j.Name, strings.Join(j.Channels, " "))
	}
	for _, child := range j.Children {
		printJoint(w, child, depth+1)
	}
}

func newBVHPlayCommand() *cobra.Command {
	var speed float64
	var loops int

	cmd := &cobra.Command{
		Use:   "play <file-or-url>",
		Short: "Play a clip and report progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if speed <= 0 {
				return fmt.Errorf("speed must be positive, got %s", strconv.FormatFloat(speed, 'f', -1, 64))
			}
			var (
				bar  *progressbar.ProgressBar
				clip *bvh.Clip
			)
			player := bvh.NewPlayer(bvh.PlayerConfig{
				Loader: locationLoader{},
				OnDurationSet: func(seconds float64) {
					fmt.Fprintf(cmd.OutOrStdout(), "duration %.2fs\n", seconds)
				},
				OnTimeUpdate: func(seconds float64) {
					if bar != nil {
						_ = bar.Set(clip.FrameAt(seconds) + 1)
					}
				},
			})
			if err := player.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			clip = player.Clip()
			if clip.Frames == 0 || clip.FrameTime <= 0 {
				return fmt.Errorf("%s has no frames to play", args[0])
			}

			bar = progressbar.NewOptions(clip.Frames,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("frame"),
				progressbar.OptionShowCount(),
			)
			tick := time.Duration(clip.FrameTime * float64(time.Second) / speed)
			if tick < time.Millisecond {
				tick = time.Millisecond
			}
			ticker := time.NewTicker(tick)
			defer ticker.Stop()

			prev := time.Now()
			for played := 0; played < loops; played++ {
				player.SetPlaying(true)
				for player.Playing() {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case now := <-ticker.C:
						player.Frame(now.Sub(prev).Seconds() * speed)
						prev = now
					}
				}
			}
			_ = bar.Finish()
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().IntVar(&loops, "loops", 1, "Times to play the clip")
	return cmd
}
