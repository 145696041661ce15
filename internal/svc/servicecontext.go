package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "criptosee-api/internal/cache"
	"criptosee-api/internal/config"
	"criptosee-api/internal/jobs"
	"criptosee-api/internal/store"
	"criptosee-api/pkg/coingecko"
	llmpkg "criptosee-api/pkg/llm"
	"criptosee-api/pkg/prompt"
)

type ServiceContext struct {
	Config config.Config

	DBConn sqlx.SqlConn
	Cache  cache.Cache
	Store  *store.Store

	Provider   *coingecko.Client
	LLM        *llmpkg.Client
	PromptTmpl *prompt.Template

	JobsConfig *jobs.Config
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	if c.Postgres.DSN != "" {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	}

	if len(c.Redis.Host) > 0 {
		svc.Cache = cache.New(
			cache.CacheConf{{RedisConf: c.Redis, Weight: 100}},
			syncx.NewSingleFlight(),
			cache.NewStat(cachekeys.Namespace),
			sqlx.ErrNotFound,
		)
	}

	if svc.DBConn != nil {
		ttl := cachekeys.NewTTLSet(c.TTL.Short, c.TTL.Medium, c.TTL.Long)
		svc.Store = store.New(svc.DBConn, svc.Cache, ttl)
	}

	if c.Provider.Value != nil {
		svc.Provider = coingecko.NewClientFromConfig(c.Provider.Value)
	} else {
		svc.Provider = coingecko.NewClient()
	}

	if c.LLM.Value != nil {
		llmCfg := c.LLM.Value
		if c.IsTestEnv() && llmCfg.DefaultModel == "" {
			llmCfg.DefaultModel = "gpt-4o-mini"
		}
		client, err := llmpkg.NewClient(llmCfg)
		if err != nil {
			log.Fatalf("failed to init llm client: %v", err)
		}
		svc.LLM = client
	}

	jobsCfg := c.Jobs.Value
	if jobsCfg == nil {
		jobsCfg = jobs.DefaultConfig()
	}
	svc.JobsConfig = jobsCfg

	tmpl, err := jobs.LoadPromptTemplate(jobsCfg.PromptTemplate)
	if err != nil {
		log.Fatalf("failed to load prediction prompt template: %v", err)
	}
	svc.PromptTmpl = tmpl

	return svc
}
