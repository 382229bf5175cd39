package tokenstore

import (
	"context"
	"fmt"

	"go-dine-api/config"
	"go-dine-api/db"
	"go-dine-api/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Open builds the store selected by cfg.Client.TokenStore.Driver. The returned
// close func releases any connection the store owns and is never nil.
func Open(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	sc := cfg.Client.TokenStore
	noop := func() error { return nil }

	log := logger.Log.WithField("driver", sc.Driver)

	switch sc.Driver {
	case "", "memory":
		log.Info("Using in-memory token store")
		return NewMemoryStore(), noop, nil

	case "file":
		log.WithField("path", sc.Path).Info("Using file token store")
		return NewFileStore(sc.Path), noop, nil

	case "redis":
		rdb, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisStore(rdb, sc.Namespace, sc.TTL), rdb.Close, nil

	case "postgres":
		conn, err := db.Connect(cfg)
		if err != nil {
			return nil, noop, err
		}
		store := NewPostgresStore(conn, sc.Namespace)
		if err := store.EnsureSchema(ctx); err != nil {
			conn.Close()
			return nil, noop, err
		}
		return store, conn.Close, nil

	case "dynamodb":
		client, err := newDynamoClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("table", sc.Table).Info("Using DynamoDB token store")
		return NewDynamoStore(client, sc.Table, sc.Namespace), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown token store driver %q", sc.Driver)
}

func newDynamoClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.Endpoint,
						SigningRegion: cfg.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*DynamoStore)(nil)
)
