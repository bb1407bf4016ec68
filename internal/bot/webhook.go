package bot

import (
	"context"
	"errors"
	"time"

	tg "github.com/go-telegram/bot"
	"github.com/rs/zerolog"
)

// webhookAttempts caps registration retries. Only the registration call
// retries; regular API failures surface to the user instead.
const webhookAttempts = 3

// RegisterWebhook points the platform at the public webhook endpoint,
// retrying up to 3 times and honoring the server-provided backoff hint on
// rate-limit responses.
func RegisterWebhook(ctx context.Context, b *tg.Bot, url string, log zerolog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= webhookAttempts; attempt++ {
		_, err := b.SetWebhook(ctx, &tg.SetWebhookParams{URL: url})
		if err == nil {
			log.Info().Str("url", url).Int("attempt", attempt).Msg("webhook registered")
			return nil
		}
		lastErr = err

		wait := time.Duration(attempt) * time.Second
		var tooMany *tg.TooManyRequestsError
		if errors.As(err, &tooMany) && tooMany.RetryAfter > 0 {
			wait = time.Duration(tooMany.RetryAfter) * time.Second
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("webhook registration failed")

		if attempt == webhookAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}
