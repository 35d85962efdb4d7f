// Package whatsapp connects a linked WhatsApp device used to deliver
// invitations and receive RSVP replies.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"

	"event-invitations/internal/phone"
	"event-invitations/internal/qr"
)

// Incoming is a text message received from another account
type Incoming struct {
	Phone string
	Text  string
}

// MessageHandler is called for every incoming text message
type MessageHandler func(ctx context.Context, msg Incoming) error

type Config struct {
	DataDir string
	// QROut receives the device-link QR code. Defaults to stdout.
	QROut io.Writer
}

type Service struct {
	client         *whatsmeow.Client
	cfg            Config
	log            zerolog.Logger
	messageHandler MessageHandler
}

// NewService opens the device store under cfg.DataDir
func NewService(ctx context.Context, cfg Config, log zerolog.Logger) (*Service, error) {
	if cfg.QROut == nil {
		cfg.QROut = os.Stdout
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create whatsapp data dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	s := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    log.With().Str("component", "whatsapp").Logger(),
	}
	s.client.AddEventHandler(s.eventHandler)
	return s, nil
}

// Connect connects to WhatsApp. An unlinked device prints a QR code to
// cfg.QROut and blocks until the pairing finishes.
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get qr channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		if evt.Event != whatsmeow.QRChannelEventCode {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		code, err := qr.Terminal(evt.Code)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to render QR code")
			code = evt.Code
		}
		fmt.Fprintf(s.cfg.QROut, "\n%s\nScan the code above in WhatsApp > Settings > Linked Devices\n\n", code)
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendText sends a plain text message to the phone number
func (s *Service) SendText(ctx context.Context, phoneNumber, text string) error {
	phoneNumber = phone.Normalize(phoneNumber)

	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phoneNumber})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	jid := resp[0].JID

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &text})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid, err)
	}

	s.log.Debug().Str("jid", jid.String()).Str("message_id", sent.ID).Msg("Message sent")
	return nil
}

// SetMessageHandler sets the handler for incoming messages
func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

func (s *Service) eventHandler(evt any) {
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Warn().Msg("Logged out from WhatsApp")
	}
}

func (s *Service) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe || msg.Info.IsGroup || msg.Message == nil {
		return
	}

	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	in := Incoming{Phone: msg.Info.Sender.User, Text: text}
	if s.messageHandler == nil {
		s.log.Info().Str("sender", in.Phone).Msg("Received message")
		return
	}
	if err := s.messageHandler(context.Background(), in); err != nil {
		s.log.Error().Err(err).Str("sender", in.Phone).Msg("Error handling message")
	}
}
