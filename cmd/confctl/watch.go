package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/events"
	"github.com/alfredjeanlab/confengine/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream configuration events",
	GroupID: "views",
	Args:    cobra.NoArgs,
	Long: `Stream configuration events as they happen. Events come from the
server's SSE endpoint, or straight from NATS with --nats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fl := cmd.Flags()
		topics, _ := fl.GetStringSlice("topic")
		lastID, _ := fl.GetString("last-event-id")
		useNATS, _ := fl.GetBool("nats")
		natsURL, _ := fl.GetString("nats-url")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := cmd.OutOrStdout()
		if !useNATS {
			return watchSSE(ctx, confClient, w, client.StreamRequest{Topics: topics, LastEventID: lastID})
		}

		if natsURL == "" {
			natsURL = defaultNATSURL()
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: pass --nats-url, set CONFENGINE_NATS_URL or add one to the active remote")
		}
		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()
		if len(topics) == 0 {
			topics = []string{"configuration.>", "system.>"}
		}
		return watchNATS(ctx, sub, topics, w)
	},
}

func defaultNATSURL() string {
	if s := os.Getenv("CONFENGINE_NATS_URL"); s != "" {
		return s
	}
	return activeRemote().NATSURL
}

func watchSSE(ctx context.Context, cc client.ConfigClient, w io.Writer, req client.StreamRequest) error {
	return cc.StreamEvents(ctx, req, func(evt client.StreamEvent) error {
		return printEvent(w, evt.ID, evt.Topic, evt.Data)
	})
}

// watchNATS prints events from every topic pattern until ctx is done.
// Payloads are tagged with the pattern they arrived on.
func watchNATS(ctx context.Context, sub events.Subscriber, topics []string, w io.Writer) error {
	type tagged struct {
		topic string
		data  []byte
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	merged := make(chan tagged)
	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for data := range ch {
				select {
				case merged <- tagged{topic: topic, data: data}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-merged:
			if !ok {
				return nil
			}
			if err := printEvent(w, "", m.topic, m.data); err != nil {
				return err
			}
		}
	}
}

// printEvent writes one event line, or the raw event as JSON with --json.
func printEvent(w io.Writer, id, topic string, data []byte) error {
	if jsonOutput {
		line, err := json.Marshal(struct {
			ID    string          `json:"id,omitempty"`
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}{id, topic, json.RawMessage(data)})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(line))
		return err
	}

	var summary struct {
		ConfigurationID string `json:"configuration_id"`
		Key             string `json:"key"`
		Version         string `json:"version"`
	}
	_ = json.Unmarshal(data, &summary)

	line := ui.RenderAccent(topic)
	if id != "" {
		line = ui.RenderMuted("#"+id) + " " + line
	}
	switch {
	case summary.Key != "":
		line += " " + summary.Key + " " + ui.RenderMuted("("+summary.ConfigurationID+")")
	case summary.Version != "":
		line += " version " + summary.Version
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func init() {
	watchCmd.Flags().StringSlice("topic", nil, "topic patterns to follow, e.g. configuration.* (default all)")
	watchCmd.Flags().String("last-event-id", "", "resume the SSE stream after this event id")
	watchCmd.Flags().Bool("nats", false, "read events from NATS instead of the server")
	watchCmd.Flags().String("nats-url", "", "NATS URL (default CONFENGINE_NATS_URL or the active remote)")
}
