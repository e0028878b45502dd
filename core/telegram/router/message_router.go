package router

import (
	"time"

	tg "postsaver/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the minimal interface for a per-user dialog state machine.
// InProgress reports whether the user is mid-dialog; HandleText consumes the
// next plain-text message for that dialog.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes builds handlers for plain-text routing. Dialog input always takes
// precedence over command lookup and the text fallback.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && conv.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "dialog", start, func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  handler,
		},
	}
}
