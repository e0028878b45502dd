package bot

import (
	"errors"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"postsaver/core/buildinfo"
	"postsaver/core/telegram/callbacks"
	"postsaver/core/telegram/helpers"
	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/saver"
)

// savesLimit caps how many posts /saves shows at once.
const savesLimit = 5

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func (a *App) handleStart(c tele.Context) error {
	return helpers.SendMD(c, textStart, startMenu())
}

func (a *App) callbackStart(c tele.Context) error {
	return helpers.EditOrSendMD(c, textStart, startMenu())
}

func (a *App) handleHelp(c tele.Context) error {
	return helpers.SendMD(c, textHelp)
}

func (a *App) callbackHelp(c tele.Context) error {
	return helpers.EditOrSendMD(c, textHelp, backMenu())
}

func (a *App) handleLogin(c tele.Context) error {
	ev := a.co.StartLogin(helpers.BuildContext(c), c.Sender().ID)
	return a.sendLoginEvent(c, ev)
}

func (a *App) handleLogout(c tele.Context) error {
	ev := a.co.Logout(helpers.BuildContext(c), c.Sender().ID)
	return a.sendLoginEvent(c, ev)
}

func (a *App) sendLoginEvent(c tele.Context, ev auth.Event) error {
	if text := loginEventText(ev, a.cfg.Identity.CodeLength); text != "" {
		return helpers.SendMD(c, text)
	}
	return nil
}

func (a *App) handleStatus(c tele.Context) error {
	st := a.co.Snapshot(c.Sender().ID)
	return helpers.SendMD(c, statusText(st))
}

func (a *App) handleToken(c tele.Context) error {
	token := strings.TrimSpace(c.Message().Payload)
	if token == "" {
		return helpers.SendMD(c, textTokenUsage)
	}
	expires, err := a.co.Redeem(c.Sender().ID, token)
	if err != nil {
		if errors.Is(err, access.ErrUnknownToken) {
			return helpers.SendMD(c, textTokenUnknown)
		}
		return err
	}
	if expires.IsZero() {
		return helpers.SendMD(c, textOwnerNoToken)
	}
	return helpers.SendMD(c, tokenRedeemedText(expires.In(a.cfg.Access.Location)))
}

func (a *App) handlePremium(c tele.Context) error {
	st := a.co.Snapshot(c.Sender().ID)
	return helpers.SendMD(c, a.premiumBody(st))
}

func (a *App) callbackPremium(c tele.Context) error {
	st := a.co.Snapshot(c.Sender().ID)
	return helpers.EditOrSendMD(c, a.premiumBody(st), backMenu())
}

func (a *App) premiumBody(st saver.Status) string {
	return premiumText(st, a.cfg.Access.PremiumDailyLimit, a.cfg.Access.PremiumGrantHours)
}

func (a *App) handleSaves(c tele.Context) error {
	return a.renderSaves(c, helpers.SendMD)
}

func (a *App) callbackSaves(c tele.Context) error {
	return a.renderSaves(c, helpers.EditOrSendMD)
}

func (a *App) renderSaves(c tele.Context, send func(tele.Context, string, ...*tele.ReplyMarkup) error) error {
	ctx := helpers.BuildContext(c)
	posts, err := a.posts.ListRecent(ctx, c.Sender().ID, savesLimit)
	if err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	if len(posts) == 0 {
		return send(c, textNoSaves, backMenu())
	}
	return send(c, savesText(posts), savesMenu(posts))
}

func (a *App) handleStats(c tele.Context) error {
	body, err := a.statsBody(c)
	if err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	return helpers.SendMD(c, body)
}

func (a *App) callbackStats(c tele.Context) error {
	body, err := a.statsBody(c)
	if err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	return helpers.EditOrSendMD(c, body, backMenu())
}

func (a *App) statsBody(c tele.Context) (string, error) {
	ctx := helpers.BuildContext(c)
	userID := c.Sender().ID

	total, err := a.posts.CountTotal(ctx, userID)
	if err != nil {
		return "", err
	}
	now := time.Now().In(a.cfg.Access.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.cfg.Access.Location)
	today, err := a.posts.CountSince(ctx, userID, dayStart)
	if err != nil {
		return "", err
	}
	first, err := a.posts.FirstSavedAt(ctx, userID)
	if err != nil {
		return "", err
	}
	return statsText(total, today, first), nil
}

func (a *App) handleDelete(c tele.Context) error {
	payload := strings.TrimSpace(c.Message().Payload)
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, "#"), 10, 64)
	if err != nil || id <= 0 {
		return helpers.SendMD(c, textDeleteUsage)
	}
	return a.deletePost(c, id, helpers.SendMD)
}

func (a *App) callbackDelete(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return helpers.EditOrSendMD(c, textOops, backMenu())
	}
	ctx := helpers.BuildContext(c)
	if _, err := a.posts.Delete(ctx, c.Sender().ID, id); err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	// Re-render the list so the removed entry disappears in place.
	return a.renderSaves(c, helpers.EditOrSendMD)
}

func (a *App) deletePost(c tele.Context, id int64, send func(tele.Context, string, ...*tele.ReplyMarkup) error) error {
	ctx := helpers.BuildContext(c)
	ok, err := a.posts.Delete(ctx, c.Sender().ID, id)
	if err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	if !ok {
		return send(c, textDeleteMissing)
	}
	return send(c, textDeleted)
}

func (a *App) handleClear(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	total, err := a.posts.CountTotal(ctx, c.Sender().ID)
	if err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	if total == 0 {
		return helpers.SendMD(c, textNothingToClear)
	}
	return helpers.SendMD(c, textClearConfirm, clearConfirmMenu())
}

func (a *App) callbackClearAll(c tele.Context) error {
	return helpers.EditOrSendMD(c, textClearConfirm, clearConfirmMenu())
}

func (a *App) callbackClearConfirm(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	if _, err := a.posts.Clear(ctx, c.Sender().ID); err != nil {
		_ = helpers.SendMD(c, textOops)
		return err
	}
	return helpers.EditOrSendMD(c, textCleared, backMenu())
}

func (a *App) handleOwner(c tele.Context) error {
	var b strings.Builder
	b.WriteString("*Owner panel*\n\n")
	b.WriteString("Version: `" + buildinfo.Version + "`\n")
	b.WriteString("Uptime: " + time.Since(a.startedAt).Round(time.Second).String() + "\n")
	b.WriteString("Live sessions: " + strconv.Itoa(a.store.Len()) + "\n")
	if d := a.dispatcher(); d != nil {
		b.WriteString("Send errors: " + strconv.FormatUint(d.ErrorCount(), 10) + "\n")
	}
	return helpers.SendMD(c, b.String())
}

// InProgress satisfies router.Conversation: a user mid-login owns plain
// text routing.
func (a *App) InProgress(userID int64) bool {
	return a.co.InProgress(userID)
}

// HandleText satisfies router.Conversation and also serves as the text
// fallback. The coordinator decides whether the text is login input, a
// post link, or noise.
func (a *App) HandleText(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	res := a.co.HandleText(ctx, c.Sender().ID, c.Text())

	switch res.Kind {
	case saver.KindLoginEvent:
		return a.sendLoginEvent(c, res.LoginEvent)
	case saver.KindIgnored:
		return helpers.SendMD(c, textUnknownText)
	case saver.KindLoginRequired:
		return helpers.SendMD(c, textLoginRequired)
	case saver.KindDenied:
		st := a.co.Snapshot(c.Sender().ID)
		return helpers.SendMD(c, deniedText(res.ResetAt.In(a.cfg.Access.Location), st.Tier))
	case saver.KindNotFound:
		return helpers.SendMD(c, textNotFound)
	case saver.KindFetchFailed:
		return helpers.SendMD(c, textFetchFailed)
	case saver.KindStoreFailed:
		return helpers.SendMD(c, textStoreFailed)
	case saver.KindSaved:
		return helpers.SendMD(c, savedText(res.Remaining))
	default:
		return nil
	}
}
