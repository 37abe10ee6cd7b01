package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forum-service/internal/websocket"
	"forum-service/internal/wsclient"
	"forum-service/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	cookie      string
	threadID    string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "wsclient",
	Short: "Follow the forum's realtime feed from a terminal",
	Long: `wsclient holds a session on the forum's /ws endpoint and prints every
thread update and notification it receives. The connection is re-established
with exponential backoff when it drops, and the last joined thread is
re-joined after each reconnect.`,
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8080/ws", "Realtime endpoint")
	rootCmd.Flags().StringVar(&cookie, "cookie", "", "Cookie header carrying the session, e.g. forum.sid=...")
	rootCmd.Flags().StringVar(&threadID, "thread", "", "Post id to join once authenticated")
	rootCmd.Flags().IntVar(&maxAttempts, "max-attempts", wsclient.DefaultMaxAttempts, "Reconnect attempts before giving up")
	rootCmd.Flags().DurationVar(&baseDelay, "base-delay", wsclient.DefaultBaseDelay, "First reconnect delay")
	rootCmd.Flags().DurationVar(&maxDelay, "max-delay", wsclient.DefaultMaxDelay, "Reconnect delay cap")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

type feed interface {
	JoinThread(postID string) error
	Connect() error
}

// start records the thread to follow, joined on every authenticated ack
// including after reconnects, then dials.
func start(c feed, thread string) error {
	if thread != "" {
		if err := c.JoinThread(thread); err != nil {
			return fmt.Errorf("join thread %s: %w", thread, err)
		}
	}
	return c.Connect()
}

func run(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	appLogger, err := logger.New(level, true)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	if cookie == "" {
		return errors.New("--cookie is required")
	}

	client := wsclient.New(wsclient.Options{
		Dial:        wsclient.NewDialer(serverURL, cookie),
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		MaxAttempts: maxAttempts,
		Logger:      appLogger.With("component", "wsclient"),
		OnAuthenticated: func(userID string) {
			appLogger.Info("Authenticated", "userID", userID)
		},
		OnThreadUpdate: func(u websocket.ThreadUpdate) {
			appLogger.Info("Thread update", "action", u.Action, "postID", u.PostID, "payload", u.Payload)
		},
		OnNotification: func(n websocket.NotificationPayload) {
			appLogger.Info("Notification", "type", n.Type, "title", n.Title, "message", n.Message)
		},
		OnStateChange: func(s wsclient.State) {
			appLogger.Debug("Connection state changed", "state", s.String())
		},
	})

	if err := start(client, threadID); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Disconnecting...")
	client.Close()
	return nil
}
