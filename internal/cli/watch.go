package cli

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live progress events from the daemon",
	Long:  "Connects to the daemon's event stream and prints progress events until interrupted. Only events emitted after connecting are shown.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	wsURL, err := eventStreamURL(serverURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	fmt.Println(dimStyle.Render("watching " + wsURL + " (ctrl-c to stop)"))

	done := make(chan error, 1)
	go func() {
		for {
			var ev protocol.Event
			if err := conn.ReadJSON(&ev); err != nil {
				done <- err
				return
			}
			fmt.Printf("%s %-18s %s\n", ev.Timestamp.Format("15:04:05"), renderKind(ev.Kind), ev.Message)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		return nil
	case err := <-done:
		return fmt.Errorf("stream closed: %w", err)
	}
}

// eventStreamURL maps the REST base URL onto the /ws endpoint.
func eventStreamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
