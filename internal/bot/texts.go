package bot

import (
	"fmt"
	"strings"
	"time"

	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/post"
	"postsaver/internal/saver"
	"postsaver/internal/session"
)

const previewRunes = 200

const textStart = `*Post Saver*

Send me a link to a Telegram post and I will save it for you.

Supported links:
` + "`https://t.me/<channel>/<post>`" + `
` + "`https://t.me/c/<id>/<post>`" + ` (private, requires /login)

Use the buttons below or /help for the full command list.`

const textHelp = `*Commands*

/start — welcome and quick actions
/login — connect your Telegram account
/logout — disconnect your account
/status — account, quota and premium status
/token <code> — redeem a premium token
/saves — your recently saved posts
/stats — your saving statistics
/delete <id> — delete one saved post
/clear — delete all saved posts
/help — this message

Public posts can be saved right away. Private channel posts need /login first.`

const (
	textPromptPhone     = "Enter your phone number in international format, e.g. `+12025550123`."
	textBadPhone        = "That does not look like a phone number. Use international format: `+` followed by 10 to 15 digits."
	textCodeSent        = "A login code has been sent to your Telegram app. Enter it here."
	textCodeRejected    = "That code was not accepted. Check it and try again."
	textNeedSecond      = "Your account is protected with a two-step password. Enter it to finish."
	textSecondRejected  = "Wrong password. Try again."
	textAuthenticated   = "✅ Logged in. You can now save posts from private channels."
	textProviderDown    = "⚠️ The login service is unavailable right now. Please try /login again later."
	textAlreadyLoggedIn = "You are already logged in. Use /logout first if you want to reconnect."
	textLoggedOut       = "Logged out. Your saved posts are kept."
	textNotLoggedIn     = "You are not logged in."

	textLoginRequired = "🔒 This post is in a private channel. Use /login to connect your account first."
	textNotFound      = "That post could not be found. It may have been deleted or the channel is unavailable."
	textFetchFailed   = "⚠️ Could not fetch the post. Nothing was counted against your quota, try again later."
	textStoreFailed   = "⚠️ The post was fetched but could not be stored. Please try again."
	textUnknownText   = "Send me a link to a Telegram post, or /help for the command list."

	textTokenUsage   = "Usage: `/token <code>`"
	textTokenUnknown = "That premium token is not recognized."
	textOwnerNoToken = "Your saves are already unlimited; the token was not spent."

	textDeleteUsage    = "Usage: `/delete <id>`. Find ids with /saves."
	textDeleteMissing  = "No saved post with that id."
	textDeleted        = "🗑 Deleted."
	textNothingToClear = "You have no saved posts."
	textClearConfirm   = "Delete *all* your saved posts? This cannot be undone."
	textCleared        = "🗑 All saved posts deleted."
	textNoSaves        = "You have not saved anything yet. Send me a post link!"

	textOops        = "⚠️ Something went wrong. Please try again."
	textOwnerOnly   = "This command is only available to the bot owner."
	textRateLimited = "Too fast. Give it a second."
)

func badCodeText(codeLen int) string {
	return fmt.Sprintf("The login code is %d digits. Enter just the digits.", codeLen)
}

// loginEventText maps a handshake event to the reply owed to the user. An
// empty string means no reply.
func loginEventText(ev auth.Event, codeLen int) string {
	switch ev {
	case auth.EventPromptPhone:
		return textPromptPhone
	case auth.EventAlreadyAuthenticated:
		return textAlreadyLoggedIn
	case auth.EventBadPhone:
		return textBadPhone
	case auth.EventCodeSent:
		return textCodeSent
	case auth.EventBadCode:
		return badCodeText(codeLen)
	case auth.EventCodeRejected:
		return textCodeRejected
	case auth.EventNeedSecondFactor:
		return textNeedSecond
	case auth.EventSecondFactorRejected:
		return textSecondRejected
	case auth.EventAuthenticated:
		return textAuthenticated
	case auth.EventProviderUnavailable:
		return textProviderDown
	case auth.EventLoggedOut:
		return textLoggedOut
	case auth.EventNotLoggedIn:
		return textNotLoggedIn
	default:
		return ""
	}
}

func savedText(remaining int) string {
	if remaining == access.Unlimited {
		return "✅ Saved."
	}
	return fmt.Sprintf("✅ Saved. %d saves left today.", remaining)
}

func deniedText(resetAt time.Time, tier session.Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚫 Daily limit reached. Saves reset at %s.", resetAt.Format("15:04 MST"))
	if tier == session.TierFree {
		b.WriteString("\nRedeem a premium token with /token to raise the limit.")
	}
	return b.String()
}

func tokenRedeemedText(expires time.Time) string {
	return fmt.Sprintf("⭐ Premium active until %s.", expires.Format("15:04 MST, Jan 2"))
}

func statusText(st saver.Status) string {
	var b strings.Builder
	b.WriteString("*Status*\n\n")

	switch st.State {
	case session.StateAuthenticated:
		b.WriteString("Account: connected\n")
	case session.StateUnauthenticated:
		b.WriteString("Account: not connected\n")
	default:
		b.WriteString("Account: login in progress\n")
	}

	fmt.Fprintf(&b, "Tier: %s\n", st.Tier)
	if st.Tier == session.TierOwner {
		b.WriteString("Saves: unlimited\n")
	} else {
		fmt.Fprintf(&b, "Saves left today: %d of %d\n", st.Remaining, st.Limit)
		fmt.Fprintf(&b, "Quota resets at %s\n", st.ResetAt.Format("15:04 MST"))
	}
	if st.Tier == session.TierPremium && !st.PremiumUntil.IsZero() {
		fmt.Fprintf(&b, "Premium until %s\n", st.PremiumUntil.Format("15:04 MST, Jan 2"))
	}
	return b.String()
}

func premiumText(st saver.Status, premiumLimit, grantHours int) string {
	var b strings.Builder
	b.WriteString("*Premium*\n\n")
	if st.Tier == session.TierPremium {
		fmt.Fprintf(&b, "Premium is active until %s.\n", st.PremiumUntil.Format("15:04 MST, Jan 2"))
	} else {
		fmt.Fprintf(&b, "Premium raises your daily limit to %d saves for %d hours.\n", premiumLimit, grantHours)
		b.WriteString("Redeem a token with `/token <code>`.")
	}
	return b.String()
}

func statsText(total, today int64, first time.Time) string {
	var b strings.Builder
	b.WriteString("*Your stats*\n\n")
	fmt.Fprintf(&b, "Saved in total: %d\n", total)
	fmt.Fprintf(&b, "Saved today: %d\n", today)
	if !first.IsZero() {
		fmt.Fprintf(&b, "First save: %s\n", first.Format("Jan 2, 2006"))
	}
	return b.String()
}

func savesText(posts []post.SavedPost) string {
	var b strings.Builder
	b.WriteString("*Recent saves*\n\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "`#%d` %s\n", p.ID, p.Link)
		if preview := previewOf(p.Content); preview != "" {
			fmt.Fprintf(&b, "_%s_\n", preview)
		}
		b.WriteString("\n")
	}
	b.WriteString("Delete one with `/delete <id>` or use the buttons.")
	return b.String()
}

// previewOf trims content to a short single-line preview.
func previewOf(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}
