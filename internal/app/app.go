// Package app assembles the greeting-card bot: configuration, database,
// Gemini client, card composer, conversation flow, and Telegram wiring.
package app

import (
	"context"
	"fmt"
	"time"

	corebootstrap "github.com/annaleodit/Celebrate-the-world/core/bootstrap"
	corecmd "github.com/annaleodit/Celebrate-the-world/core/cmd"
	coretelegram "github.com/annaleodit/Celebrate-the-world/core/telegram"
	"github.com/annaleodit/Celebrate-the-world/core/telegram/router"
	tgsender "github.com/annaleodit/Celebrate-the-world/core/telegram/sender"
	"github.com/annaleodit/Celebrate-the-world/internal/card"
	"github.com/annaleodit/Celebrate-the-world/internal/flow"
	"github.com/annaleodit/Celebrate-the-world/internal/genimage"
	"github.com/annaleodit/Celebrate-the-world/internal/storage"

	"github.com/jmoiron/sqlx"
)

// App holds the assembled application.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	users    *storage.Users
	machine  *flow.Machine
	delivery *botDelivery
}

// LoadConfig adapts Load for the core runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return Load(path)
}

// Bootstrap initializes infrastructure and builds the App.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	result, err := corebootstrap.Run(corebootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	gen, err := genimage.NewClient(cfg.Gemini, nil)
	if err != nil {
		result.DB.Close()
		return nil, err
	}

	composer, err := card.NewComposer()
	if err != nil {
		result.DB.Close()
		return nil, err
	}

	delivery := &botDelivery{}
	machine := flow.NewMachine(flow.NewMemoryStore(), gen, composer, delivery)

	return &App{
		cfg:      cfg,
		db:       result.DB,
		users:    storage.NewUsers(result.DB),
		machine:  machine,
		delivery: delivery,
	}, nil
}

// TelegramRunOptions wires commands, callbacks, and text routing.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(fsmAdapter{app: a}, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		DispatcherOptions: tgsender.Options{
			MaxRetries:   2,
			RetryBackoff: 2 * time.Second,
		},
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.delivery.SetBot(rt.Bot)
			return nil
		},
		OnStop: func(_ context.Context, _ coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
