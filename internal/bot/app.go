package bot

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"postsaver/core/bootstrap"
	corecmd "postsaver/core/cmd"
	tg "postsaver/core/telegram"
	"postsaver/core/telegram/commands"
	"postsaver/core/telegram/helpers"
	"postsaver/core/telegram/router"
	"postsaver/core/telegram/sender"
	"postsaver/internal/access"
	"postsaver/internal/auth"
	"postsaver/internal/fetch"
	"postsaver/internal/idp"
	"postsaver/internal/post"
	"postsaver/internal/saver"
	"postsaver/internal/session"
)

// App is the assembled Post Saver bot.
type App struct {
	cfg   *Config
	store *session.Store
	co    *saver.Coordinator
	posts *post.Repository
	reg   *tg.Registry
	disp  *sender.Dispatcher

	startedAt time.Time
}

// New wires the bot from configuration and an open database handle.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}
	if db == nil {
		return nil, fmt.Errorf("bot: nil database handle")
	}

	store := session.NewStore(cfg.Access.OwnerID)
	machine := auth.NewMachine(idp.New(cfg.Identity), cfg.Identity.CodeLength)
	controller := access.NewController(cfg.Access)
	fetcher := fetch.NewHTTPFetcher(cfg.Fetcher)
	repo := post.NewRepository(db)

	a := &App{
		cfg:       cfg,
		store:     store,
		co:        saver.New(store, machine, controller, fetcher, repo, nil),
		posts:     repo,
		disp:      sender.NewDispatcher(sender.Options{}),
		startedAt: time.Now(),
	}
	a.reg = a.buildRegistry()
	return a, nil
}

func (a *App) dispatcher() *sender.Dispatcher { return a.disp }

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Welcome and quick actions",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "Command reference",
	})
	reg.RegisterCommand("/login", commands.Command{
		Handler:     a.handleLogin,
		Description: "Connect your Telegram account",
	})
	reg.RegisterCommand("/logout", commands.Command{
		Handler:     a.handleLogout,
		Description: "Disconnect your account",
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     a.handleStatus,
		Description: "Account, quota and premium status",
	})
	reg.RegisterCommand("/token", commands.Command{
		Handler:     a.handleToken,
		Description: "Redeem a premium token",
	})
	reg.RegisterCommand("/saves", commands.Command{
		Handler:     a.handleSaves,
		Description: "Your recently saved posts",
		Aliases:     []string{"/list"},
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Your saving statistics",
	})
	reg.RegisterCommand("/premium", commands.Command{
		Handler:     a.handlePremium,
		Description: "Premium info",
	})
	reg.RegisterCommand("/delete", commands.Command{
		Handler:     a.handleDelete,
		Description: "Delete one saved post",
	})
	reg.RegisterCommand("/clear", commands.Command{
		Handler:     a.handleClear,
		Description: "Delete all saved posts",
	})
	reg.RegisterCommand("/owner", commands.Command{
		Handler:   a.handleOwner,
		OwnerOnly: true,
		Hidden:    true,
	})

	// Callback registration never fails for distinct literal keys.
	_ = reg.RegisterCallback(cbStart, a.callbackStart)
	_ = reg.RegisterCallback(cbHelp, a.callbackHelp)
	_ = reg.RegisterCallback(cbMySaves, a.callbackSaves)
	_ = reg.RegisterCallback(cbPremium, a.callbackPremium)
	_ = reg.RegisterCallback(cbStats, a.callbackStats)
	_ = reg.RegisterCallback(cbDelete, a.callbackDelete)
	_ = reg.RegisterCallback(cbClearAll, a.callbackClearAll)
	_ = reg.RegisterCallback(cbClearConfirm, a.callbackClearConfirm)

	reg.SetTextFallback(a.HandleText)
	// Buttons from messages sent before a redeploy may carry retired
	// keys; bring the user back to the start menu.
	reg.SetCallbackNotFound(a.callbackStart)
	return reg
}

// TelegramRunOptions satisfies corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		OwnerID: a.cfg.Access.OwnerID,
		OnOwnerReject: func(c tele.Context) error {
			return helpers.SendMD(c, textOwnerOnly)
		},
	})
	routes = append(routes, router.TextRoutes(a, a.reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(a.reg, router.CallbackOptions{}))

	return tg.RunOptions{
		Config:     core,
		Dispatcher: a.disp,
		Registry:   a.reg,
		Middlewares: tg.DefaultMiddlewares(core, func(c tele.Context) error {
			return helpers.SendMD(c, textRateLimited)
		}),
		Routes: routes,
	}, nil
}

// Bootstrap is the corecmd bootstrap hook: it runs the shared startup
// pipeline and assembles the app.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB)
}
