// Command watch-scene subscribes to a running view-asteroid and prints every
// transform and marker update it receives.
//
// Usage:
//
//	go run ./cmd/tools/watch-scene [flags]
//
// Flags:
//
//	-addr     Visualiser address (default: localhost:50061)
//	-frames   Comma-separated child frames to show (default: all)
//	-markers  Include marker updates (default: true)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/asteroid-view/internal/visualiser"
)

// subscribeRequest builds the stream filter from the command-line values.
func subscribeRequest(frames string, markers bool) visualiser.SubscribeRequest {
	req := visualiser.SubscribeRequest{IncludeMarkers: markers}
	for _, f := range strings.Split(frames, ",") {
		if f = strings.TrimSpace(f); f != "" {
			req.Frames = append(req.Frames, f)
		}
	}
	return req
}

// formatUpdate renders an update as one line per transform or marker.
func formatUpdate(u visualiser.Update) []string {
	switch u.Kind {
	case visualiser.KindTransform:
		ts := u.Transform
		return []string{fmt.Sprintf("#%d %s -> %s @ %s: %s", u.Seq, ts.Parent, ts.Child, ts.Stamp.Format(stampLayout), ts.Pose)}
	case visualiser.KindMarkers:
		lines := make([]string, 0, len(u.Markers.Markers))
		for _, m := range u.Markers.Markers {
			lines = append(lines, fmt.Sprintf("#%d %s %s/%d in %s @ %s: %s", u.Seq, u.Topic, m.Namespace, m.ID, m.FrameID,
				m.Stamp.Format(stampLayout), m.MeshResource))
		}
		return lines
	}
	return nil
}

const stampLayout = "15:04:05.000000"

// watch prints every update on the stream to out until the server closes it
// or ctx is cancelled.
func watch(ctx context.Context, client *visualiser.Client, req visualiser.SubscribeRequest, out io.Writer) error {
	sub, err := client.Subscribe(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	for {
		u, err := sub.Recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}
		for _, line := range formatUpdate(u) {
			fmt.Fprintln(out, line)
		}
	}
}

func main() {
	addr := flag.String("addr", visualiser.DefaultConfig().ListenAddr, "Visualiser address")
	frames := flag.String("frames", "", "Comma-separated child frames to show (empty: all)")
	markers := flag.Bool("markers", true, "Include marker updates")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, visualiser.NewClient(conn), subscribeRequest(*frames, *markers), os.Stdout); err != nil {
		log.Fatal(err)
	}
}
