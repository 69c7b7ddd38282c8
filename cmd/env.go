package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-insights/internal/app"
	"github.com/sells-group/census-insights/internal/chat"
	"github.com/sells-group/census-insights/internal/store"
	"github.com/sells-group/census-insights/pkg/anthropic"
)

// envOptions selects the optional services initEnv wires up.
type envOptions struct {
	store bool
	chat  bool
}

// initEnv validates the config for mode, loads the census tables and opens
// the requested services. Callers should defer closeEnv(env).
func initEnv(ctx context.Context, mode string, opts envOptions) (*app.Env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env, err := app.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if opts.store || opts.chat {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	if opts.chat {
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("anthropic.key not set, chat endpoints disabled")
		} else {
			env.Chat = chat.New(anthropic.NewClient(cfg.Anthropic.Key), env.Store, env.Briefing, chat.Config{
				Model:             cfg.Anthropic.Model,
				MaxTokens:         cfg.Anthropic.MaxTokens,
				HistoryLimit:      cfg.Chat.HistoryLimit,
				RequestsPerMinute: cfg.Chat.RequestsPerMinute,
			})
		}
	}
	return env, nil
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		Pool:        &store.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns},
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// closeEnv waits for background training and releases the store.
func closeEnv(env *app.Env) {
	env.Wait()
	if env.Store != nil {
		_ = env.Store.Close()
	}
}
