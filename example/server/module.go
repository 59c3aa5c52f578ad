package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	attachmentapi "github.com/desain-gratis/attachment/delivery/attachment-api"
	"github.com/desain-gratis/attachment/repository/attachment"
	attachment_inmemory "github.com/desain-gratis/attachment/repository/attachment/inmemory"
	attachment_postgres "github.com/desain-gratis/attachment/repository/attachment/postgres"
	attachment_redis "github.com/desain-gratis/attachment/repository/attachment/redis"
	"github.com/desain-gratis/attachment/repository/blob"
	blob_awss3 "github.com/desain-gratis/attachment/repository/blob/awss3"
	blob_gcs "github.com/desain-gratis/attachment/repository/blob/gcs"
	blob_inmemory "github.com/desain-gratis/attachment/repository/blob/inmemory"
	blob_s3 "github.com/desain-gratis/attachment/repository/blob/s3"
	"github.com/desain-gratis/attachment/repository/limiter"
	limiter_inmemory "github.com/desain-gratis/attachment/repository/limiter/inmemory"
	limiter_redis "github.com/desain-gratis/attachment/repository/limiter/redis"
	"github.com/desain-gratis/attachment/repository/remote"
	types "github.com/desain-gratis/attachment/types/http"
	"github.com/desain-gratis/attachment/usecase/attachment/crud"
	"github.com/desain-gratis/attachment/usecase/attachment/lifecycle"
	policy_handler "github.com/desain-gratis/attachment/usecase/policy/handler"
	"github.com/desain-gratis/attachment/utility/cdnurl"
	"github.com/desain-gratis/attachment/utility/config"
	"github.com/desain-gratis/attachment/utility/secretkv"
	"github.com/desain-gratis/attachment/utility/secretkv/gsm"
)

type app struct {
	api     interface{ Register(router *httprouter.Router) }
	closers []io.Closer
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Err(err).Msgf("failed to close resource")
		}
	}
}

// newApp wires config -> secrets -> storage -> records -> limiter -> usecases -> api
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	secretKey, err := storageSecret(ctx, a, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	blobRepo, err := newBlobRepository(ctx, a, cfg, secretKey)
	if err != nil {
		a.close()
		return nil, err
	}

	recordRepo, err := newRecordRepository(ctx, a, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	urls := cdnurl.New(cdnurl.Config{
		StoragePrefix:    cfg.Storage.Prefix,
		CDNOrigin:        cfg.CDN.Origin,
		ShardCount:       cfg.CDN.ShardCount,
		ThumbnailService: cfg.Thumbnail.Service,
		Production:       cfg.Production,
	})

	lc := lifecycle.New(lifecycle.Config{
		StoragePrefix: cfg.Storage.Prefix,
		ServerTypes:   cfg.Upload.ServerTypes,
		CacheControl:  cfg.Storage.CacheControl,
		ACL:           cfg.Storage.ACL,
	}, blobRepo, remote.New(cfg.HTTP.FetchTimeout, cfg.Upload.MaxFetchSize), urls)

	policyUC := policy_handler.New(policy_handler.Config{
		Bucket:            cfg.Storage.Bucket,
		AccessKeyID:       cfg.Storage.AccessKeyID,
		SecretAccessKey:   secretKey,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		Expiry:            cfg.Upload.PolicyExpiry,
		CacheControl:      cfg.Storage.CacheControl,
		ACL:               cfg.Storage.ACL,
	})

	limiterRepo, err := newLimiter(a, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.api = attachmentapi.New(
		policyUC,
		crud.New(recordRepo, lc),
		lc,
		types.WidgetConfig{
			PolicyURL:         "/policy/",
			StorageURL:        cfg.Storage.Prefix,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			MaxFileSize:       cfg.Upload.MaxFileSize,
			MultiSelection:    false,
			FileDataName:      "file",
		},
		attachmentapi.WithLimiter(limiterRepo, limiter.Limit{
			Max:    cfg.Limiter.Max,
			Window: cfg.Limiter.Window,
		}),
	)

	return a, nil
}

func storageSecret(ctx context.Context, a *app, cfg config.Config) (string, error) {
	if cfg.Storage.SecretRef == "" {
		return cfg.Storage.SecretAccessKey, nil
	}

	var provider secretkv.Provider
	switch cfg.Secret.Provider {
	case "gsm":
		p, err := gsm.New(ctx, cfg.Secret.ProjectID)
		if err != nil {
			return "", err
		}
		a.closers = append(a.closers, p)
		provider = secretkv.NewCached(p, cfg.Secret.CacheTTL)
	default:
		return "", fmt.Errorf("unknown secret provider %q", cfg.Secret.Provider)
	}

	secret, err := secretkv.Resolve(ctx, provider, cfg.Storage.SecretRef)
	if err != nil {
		return "", err
	}
	log.Info().Msgf("storage secret loaded from %v", cfg.Storage.SecretRef)
	return secret, nil
}

func newBlobRepository(ctx context.Context, a *app, cfg config.Config, secretKey string) (blob.Repository, error) {
	log.Info().Msgf("using %v object storage, bucket %v", cfg.Storage.Provider, cfg.Storage.Bucket)

	switch cfg.Storage.Provider {
	case "minio":
		return blob_s3.New(blob_s3.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: secretKey,
			UseSSL:          cfg.Storage.UseSSL,
			BucketName:      cfg.Storage.Bucket,
			BasePublicURL:   cfg.Storage.Prefix,
		})
	case "s3":
		return blob_awss3.New(ctx, blob_awss3.Config{
			Endpoint:       cfg.Storage.Endpoint,
			Region:         cfg.Storage.Region,
			AccessKey:      cfg.Storage.AccessKeyID,
			SecretKey:      secretKey,
			ForcePathStyle: cfg.Storage.Endpoint != "",
			Bucket:         cfg.Storage.Bucket,
			PublicURL:      cfg.Storage.Prefix,
		})
	case "gcs":
		return blob_gcs.New(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
	default:
		log.Warn().Msgf("objects are kept in memory and lost on restart")
		return blob_inmemory.New(cfg.Storage.Prefix), nil
	}
}

func newRecordRepository(ctx context.Context, a *app, cfg config.Config) (attachment.Repository, error) {
	switch cfg.Record.Driver {
	case "postgres":
		db, err := attachment_postgres.Open(ctx, cfg.Record.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, db)

		repo := attachment_postgres.New(db, cfg.Record.Table, cfg.Record.Timeout)
		if err := repo.Init(ctx); err != nil {
			return nil, fmt.Errorf("initializing table %v: %w", cfg.Record.Table, err)
		}
		return repo, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Record.DSN})
		a.closers = append(a.closers, client)
		return attachment_redis.New(client, cfg.Record.Table+":"), nil
	default:
		return attachment_inmemory.New(), nil
	}
}

func newLimiter(a *app, cfg config.Config) (limiter.Repository, error) {
	switch cfg.Limiter.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Limiter.Address})
		a.closers = append(a.closers, client)
		return limiter_redis.New(client), nil
	case "inmemory":
		return limiter_inmemory.New(), nil
	default:
		return limiter.NewUnlimited(), nil
	}
}
