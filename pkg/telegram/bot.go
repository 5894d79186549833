// Package telegram serves the analysis over a Telegram bot account using
// MTProto (gotd/td). Every inbound text message gets exactly one reply.
package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"

	"github.com/bubble-lens/pkg/config"
	"github.com/bubble-lens/pkg/extractor"
)

type Bot struct {
	cfg     *config.Config
	handler *Handler
	wg      sync.WaitGroup
}

func NewBot(cfg *config.Config, handler *Handler) *Bot {
	return &Bot{cfg: cfg, handler: handler}
}

// Run logs in with the bot token and serves updates until ctx is done. It
// waits for in-flight replies before returning.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(b.cfg.TelegramAPIID, b.cfg.TelegramAPIHash, telegram.Options{
		UpdateHandler:  dispatcher,
		SessionStorage: &session.FileStorage{Path: b.cfg.TelegramSession},
	})
	api := client.API()
	sender := message.NewSender(api)
	up := uploader.NewUploader(api)

	dispatcher.OnNewMessage(func(_ context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		m, ok := u.Message.(*tg.Message)
		if !ok || m.Out || m.Message == "" {
			return nil
		}
		// updates are dispatched sequentially; analyses take tens of seconds
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.serve(ctx, m, &reply{builder: sender.Reply(e, u), uploader: up})
		}()
		return nil
	})

	log.Info().Str("session", b.cfg.TelegramSession).Msg("🤖 Connecting to Telegram")
	err := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := client.Auth().Bot(ctx, b.cfg.TelegramBotToken); err != nil {
				return fmt.Errorf("bot login: %w", err)
			}
		}
		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("self: %w", err)
		}
		log.Info().Str("username", self.Username).Msg("🤖 Bot online")

		<-ctx.Done()
		return ctx.Err()
	})
	b.wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bot) serve(ctx context.Context, m *tg.Message, r Responder) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int("msg_id", m.ID).Msg("💥 handler panicked")
		}
	}()

	input := m.Message
	if extractor.LooksLikeAddress(input) {
		input = extractor.Abbrev(input)
	}
	log.Info().Int("msg_id", m.ID).Str("text", input).Msg("📨 Message received")

	if err := b.handler.Handle(ctx, m.Message, r); err != nil {
		log.Warn().Err(err).Int("msg_id", m.ID).Msg("reply failed")
	}
}

// reply answers one message through gotd's sender.
type reply struct {
	builder  *message.Builder
	uploader *uploader.Uploader
}

func (r *reply) Text(ctx context.Context, text string) error {
	_, err := r.builder.Text(ctx, text)
	return err
}

func (r *reply) Photo(ctx context.Context, path, caption string) error {
	f, err := r.uploader.FromPath(ctx, path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	_, err = r.builder.Media(ctx, message.UploadedPhoto(f, styling.Plain(caption)))
	return err
}
