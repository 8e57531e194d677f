//go:build wireinject

package main

import (
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/meowerlab/meower/core"
	"github.com/meowerlab/meower/x/mew"
	"github.com/meowerlab/meower/x/moderation"
	"github.com/meowerlab/meower/x/ratelimit"
	"github.com/meowerlab/meower/x/util"
)

var mewServiceProvider = wire.NewSet(mew.NewService, mew.NewRepository)

func SetupMewService(db *gorm.DB, mc *memcache.Client, limiter core.RateLimiter, moderator core.Moderator) mew.Service {
	wire.Build(mewServiceProvider)
	return nil
}

func SetupRateLimiter(rdb *redis.Client, config util.Config) (*ratelimit.Limiter, error) {
	wire.Build(ratelimit.NewFromConfig)
	return nil, nil
}

func SetupModerator(config util.Config) (*moderation.Moderator, error) {
	wire.Build(moderation.NewFromConfig)
	return nil, nil
}
