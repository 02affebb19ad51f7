// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

// Command warblerd runs the warbler bot: it connects to the chat
// server, joins the configured rooms, and serves commands and file
// transfers until stopped. Connection loss is retried with bounded
// exponential backoff.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warbler-im/warbler/fetch"
	"github.com/warbler-im/warbler/lib/clock"
	"github.com/warbler-im/warbler/lib/config"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/lib/process"
	"github.com/warbler-im/warbler/lib/secret"
	"github.com/warbler-im/warbler/lib/version"
	"github.com/warbler-im/warbler/observe"
	"github.com/warbler-im/warbler/stanza"
	"github.com/warbler-im/warbler/store"
	"github.com/warbler-im/warbler/xmpp"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to warbler.yaml (overrides WARBLER_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("warblerd " + version.Full())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address, err := jid.Parse(cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("warblerd: server.address: %w", err)
	}
	password, err := secret.ReadFromPath(cfg.Server.PasswordFile)
	if err != nil {
		return fmt.Errorf("warblerd: reading password: %w", err)
	}
	defer password.Close()

	for _, dir := range []string{cfg.Paths.Data, cfg.Paths.Downloads} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("warblerd: creating %s: %w", dir, err)
		}
	}

	contacts, err := store.Open(store.Config{
		Path:   cfg.DatabasePath(),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer contacts.Close()

	fetcher, err := fetch.New(fetch.Config{
		Dir:    cfg.Paths.Downloads,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	metrics := observe.NewMetrics()
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer metricsServer.Close()
		logger.Info("metrics listening", "address", cfg.Metrics.Listen)
	}

	daemon := &daemon{
		cfg:      cfg,
		address:  address,
		password: password,
		logger:   logger,
		contacts: contacts,
		fetcher:  fetcher,
		metrics:  metrics,
	}
	return daemon.serve(ctx)
}

type daemon struct {
	cfg      *config.Config
	address  jid.JID
	password *secret.Buffer
	logger   *slog.Logger
	contacts *store.Store
	fetcher  *fetch.Fetcher
	metrics  *observe.Metrics
}

// serve runs connection attempts until ctx ends. A session that came
// online resets the backoff; repeated failures double it up to the
// configured cap.
func (d *daemon) serve(ctx context.Context) error {
	backoff := d.cfg.Reconnect.MinBackoff
	for {
		online, err := d.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			d.logger.Error("session ended", "error", err)
		}
		if online {
			backoff = d.cfg.Reconnect.MinBackoff
		}

		d.logger.Info("reconnecting", "backoff", backoff.String())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > d.cfg.Reconnect.MaxBackoff {
			backoff = d.cfg.Reconnect.MaxBackoff
		}
	}
}

// runSession dials once and drives the session until it goes offline.
// Reports whether the session ever came online.
func (d *daemon) runSession(ctx context.Context) (online bool, err error) {
	var conferenceDomain string
	var uploadService jid.JID
	if d.cfg.Server.ConferenceDomain != "" {
		conferenceDomain = d.cfg.Server.ConferenceDomain
	}
	if d.cfg.Server.UploadService != "" {
		service, err := jid.Parse(d.cfg.Server.UploadService)
		if err != nil {
			return false, fmt.Errorf("warblerd: server.upload_service: %w", err)
		}
		uploadService = service
	}

	session, err := xmpp.Dial(ctx, xmpp.DialConfig{
		URL:      d.cfg.Server.URL,
		Password: d.password,
		Resource: d.cfg.Server.Resource,
		Config: xmpp.Config{
			Address:          d.address,
			Nick:             d.cfg.Server.Nick,
			ConferenceDomain: conferenceDomain,
			UploadService:    uploadService,
			DownloadDir:      d.cfg.Paths.Downloads,
			Profile: stanza.VCard{
				FullName:    d.cfg.Profile.Name,
				Nickname:    d.cfg.Profile.Nickname,
				URL:         d.cfg.Profile.URL,
				Description: d.cfg.Profile.Description,
			},
			Registry: d.contacts,
			History:  &historySink{store: d.contacts, logger: d.logger},
			Fetcher:  d.fetcher,
			Logger:   d.logger,
			Clock:    clock.Real(),
			Metrics:  d.metrics,
		},
	})
	if err != nil {
		return false, err
	}
	defer session.Close()

	for {
		select {
		case event := <-session.Events():
			switch event.Kind {
			case xmpp.EventOnline:
				online = true
				d.logger.Info("online", "jid", session.BoundJID().String())
				for _, room := range d.cfg.Rooms {
					if err := session.JoinRoom(room, ""); err != nil {
						d.logger.Error("joining configured room failed",
							"room", room, "error", err)
					}
				}
			case xmpp.EventOffline:
				return online, nil
			case xmpp.EventError:
				d.logger.Error("session error", "error", event.Err)
			}
		case message := <-session.Messages():
			d.handleMessage(session, message)
		case <-ctx.Done():
			return online, nil
		}
	}
}

// handleMessage consumes traffic the engine forwarded to the host.
// warblerd has no conversational brain: plain text is logged, image
// requests get a polite refusal.
func (d *daemon) handleMessage(session *xmpp.Session, message xmpp.IncomingMessage) {
	if message.Image != nil {
		reply := "Image generation is not configured on this deployment."
		var err error
		if message.Groupchat {
			err = session.SendGroupchat(message.Room.String(), reply)
		} else {
			err = session.SendChat(message.Sender.Bare(), reply)
		}
		if err != nil {
			d.logger.Warn("image refusal failed", "error", err)
		}
		return
	}

	d.logger.Info("message",
		"from", message.Sender.String(),
		"groupchat", message.Groupchat,
		"text", message.Text,
		"attachment", message.AttachmentPath,
	)
}

// historySink adapts the store's history writer to the engine's
// fire-and-forget contract.
type historySink struct {
	store  *store.Store
	logger *slog.Logger
}

func (h *historySink) Append(entry xmpp.HistoryEntry) {
	err := h.store.AppendHistory(store.HistoryEntry{
		Identity:  entry.Identity,
		Direction: entry.Direction,
		Body:      entry.Body,
		At:        entry.At,
	})
	if err != nil {
		h.logger.Error("recording history failed",
			"identity", entry.Identity.String(), "error", err)
	}
}
