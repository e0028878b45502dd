package bot

import (
	tele "gopkg.in/telebot.v4"

	"postsaver/core/telegram/keyboard"
	"postsaver/internal/post"
)

// Callback keys referenced by keyboards and registered in buildRegistry.
const (
	cbHelp         = "help"
	cbMySaves      = "my_saves"
	cbPremium      = "premium"
	cbStats        = "stats"
	cbStart        = "start"
	cbDelete       = "del"
	cbClearAll     = "clear_all"
	cbClearConfirm = "clear_confirm"
)

func startMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📥 My saves", Unique: cbMySaves},
			{Text: "📊 Stats", Unique: cbStats},
		},
		[]keyboard.InlineBtn{
			{Text: "⭐ Premium", Unique: cbPremium},
			{Text: "❓ Help", Unique: cbHelp},
		},
	)
}

func backMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "« Back", Unique: cbStart},
	})
}

func savesMenu(posts []post.SavedPost) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(posts)+2)
	for _, p := range posts {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   "🗑 #" + formatID(p.ID),
			Unique: cbDelete,
			Data:   formatID(p.ID),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 3)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		[]tele.InlineButton{*markup.Data("🧹 Clear all", cbClearAll).Inline()},
		[]tele.InlineButton{*markup.Data("« Back", cbStart).Inline()},
	)
	return markup
}

func clearConfirmMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Yes, delete everything", Unique: cbClearConfirm},
			{Text: "Cancel", Unique: cbStart},
		},
	)
}
