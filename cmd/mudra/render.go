package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/render"
)

var (
	renderWidth   int
	renderHeight  int
	renderMirror  bool
	renderTimeout time.Duration
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the skeleton of the next hand seen on the tracking stream",
		Args:  cobra.NoArgs,
		RunE:  runRender,
	}
	cmd.Flags().IntVar(&renderWidth, "width", 640, "output surface width in pixels")
	cmd.Flags().IntVar(&renderHeight, "height", 480, "output surface height in pixels")
	cmd.Flags().BoolVar(&renderMirror, "mirror", true, "flip horizontally like a mirror")
	cmd.Flags().DurationVar(&renderTimeout, "timeout", 10*time.Second, "how long to wait for a hand")
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	batch, err := nextHand(ctx, cfg.Stream.URL)
	if err != nil {
		return err
	}

	skeletons := render.Batch(batch, render.Options{
		Width:  renderWidth,
		Height: renderHeight,
		Mirror: renderMirror,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(skeletons)
}

// nextHand reads the stream until a batch with at least one hand arrives.
func nextHand(ctx context.Context, url string) (landmark.Batch, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return landmark.Batch{}, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
				return landmark.Batch{}, errors.New("no hand seen before timeout")
			}
			return landmark.Batch{}, fmt.Errorf("stream read failed: %w", err)
		}
		batch, err := landmark.Parse(data, time.Now())
		if err != nil {
			logger.Warn().Err(err).Msg("dropping stream message")
			continue
		}
		if batch.HandPresent() {
			return batch, nil
		}
	}
}
