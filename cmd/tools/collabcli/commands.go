package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/collabpad/backend/internal/client"
	"github.com/zhouzirui/collabpad/backend/internal/model/message"
	"github.com/zhouzirui/collabpad/backend/internal/model/session"
)

// websocketURL maps an http(s) base URL to the server's websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func connect(ctx context.Context, opts *globalOptions, cache client.Cache) (*client.Conn, error) {
	wsURL, err := websocketURL(opts.server)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	return client.Dial(dialCtx, wsURL, client.NewEditor(cache))
}

// startSession runs conn in the background and waits for init.
func startSession(ctx context.Context, conn *client.Conn, onEvent func(message.Event)) (<-chan error, error) {
	initCh := make(chan struct{})
	done := make(chan error, 1)
	seen := false
	go func() {
		done <- conn.Run(ctx, func(ev message.Event) {
			if ev.Type == message.TypeInit && !seen {
				seen = true
				close(initCh)
			}
			if onEvent != nil {
				onEvent(ev)
			}
		})
	}()

	select {
	case <-initCh:
		return done, nil
	case err := <-done:
		if err == nil {
			err = fmt.Errorf("connection closed before init")
		}
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func watchCmd(opts *globalOptions) *cobra.Command {
	var (
		cachePath string
		raw       bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the shared document and print every event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var cache client.Cache
			if cachePath != "" {
				cache = client.NewFileCache(cachePath)
			}
			conn, err := connect(ctx, opts, cache)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			done, err := startSession(ctx, conn, func(ev message.Event) {
				printEvent(out, conn.Editor(), ev, raw)
			})
			if err != nil {
				return err
			}

			err = <-done
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cachePath, "cache", "", "file used to keep the text across disconnects")
	cmd.Flags().BoolVar(&raw, "raw", false, "print events as JSON")
	return cmd
}

func printEvent(w io.Writer, editor *client.Editor, ev message.Event, raw bool) {
	if raw {
		data, _ := json.Marshal(ev)
		fmt.Fprintln(w, string(data))
		return
	}
	switch ev.Type {
	case message.TypeInit:
		fmt.Fprintf(w, "connected as %s (%d users)\n", ev.UserID, len(ev.Users))
		fmt.Fprintf(w, "--- document ---\n%s\n----------------\n", editor.Text())
	case message.TypeUpdate:
		fmt.Fprintf(w, "--- document ---\n%s\n----------------\n", editor.Text())
	case message.TypeCursor:
		if ev.Cursor == nil {
			return
		}
		fmt.Fprintf(w, "cursor %s at (%.0f, %.0f)\n", ev.UserID, ev.Cursor.X, ev.Cursor.Y)
	case message.TypeSelection:
		if ev.Selection == nil {
			return
		}
		fmt.Fprintf(w, "selection %s [%d, %d)\n", ev.UserID, ev.Selection.Start, ev.Selection.End)
	case message.TypeUserDisconnect:
		fmt.Fprintf(w, "user %s left (%d remaining)\n", ev.UserID, len(ev.Users))
	}
}

func sendCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <content>",
		Short: "Replace the shared document with content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := connect(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := startSession(ctx, conn, nil); err != nil {
				return err
			}
			if err := conn.Publish(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes as %s\n", len(args[0]), conn.Editor().UserID())
			return nil
		},
	}
}

func typeCmd(opts *globalOptions) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Append stdin to the document one character at a time",
		Long: `type appends standard input to the current document as if it were typed.
Like the browser editor, the document is only transmitted when the text
ends with a space or a newline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := connect(ctx, opts, nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := startSession(ctx, conn, nil); err != nil {
				return err
			}

			sent := 0
			reader := bufio.NewReader(cmd.InOrStdin())
			for {
				r, _, err := reader.ReadRune()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				ok, err := conn.Edit(conn.Editor().Text() + string(r))
				if err != nil {
					return err
				}
				if ok {
					sent++
				}
				if delay > 0 {
					time.Sleep(delay)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transmitted %d updates\n", sent)
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between characters")
	return cmd
}

func usersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List connected users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := fetchUsers(cmd.Context(), opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCURSOR")
			for _, u := range users {
				cursor := "-"
				if u.CursorPosition != nil {
					cursor = fmt.Sprintf("%.0f,%.0f", u.CursorPosition.X, u.CursorPosition.Y)
				}
				fmt.Fprintf(tw, "%s\t%s\n", u.ID, cursor)
			}
			return tw.Flush()
		},
	}
}

func fetchUsers(ctx context.Context, opts *globalOptions) ([]session.UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	endpoint := strings.TrimSuffix(opts.server, "/") + "/api/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request users: unexpected status %s", resp.Status)
	}

	var users []session.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
