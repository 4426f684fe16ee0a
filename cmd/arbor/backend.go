package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/arbor/config"
	"github.com/jacentio/arbor/kv"
	"github.com/jacentio/arbor/kv/boltkv"
	"github.com/jacentio/arbor/kv/dynamokv"
	"github.com/jacentio/arbor/store"
)

const (
	backendBolt   = "bolt"
	backendDynamo = "dynamodb"
)

// session is an open backend with the config entity loaded on it.
type session struct {
	config *config.Config
	close  func() error
}

func (o *options) dynamoConfig() dynamokv.Config {
	cfg := dynamokv.DefaultConfig()
	cfg.TablePrefix = o.tablePrefix
	cfg.CounterTable = o.tablePrefix + "counters"
	cfg.CounterShards = o.counterShards
	return cfg
}

func (o *options) dynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(opts *dynamodb.Options) {
		if o.endpoint != "" {
			opts.BaseEndpoint = aws.String(o.endpoint)
		}
	}), nil
}

func (o *options) openStore(ctx context.Context) (kv.Store, func() error, error) {
	switch o.backend {
	case backendDynamo:
		client, err := o.dynamoClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return dynamokv.New(client, o.dynamoConfig(), o.logger), func() error { return nil }, nil
	default:
		cfg := boltkv.DefaultConfig()
		cfg.Path = o.boltPath
		db, err := boltkv.Open(cfg)
		if err != nil {
			if boltkv.IsTimeout(err) {
				return nil, nil, fmt.Errorf("%s is locked by another process: %w", cfg.Path, err)
			}
			return nil, nil, err
		}
		return db, db.Close, nil
	}
}

func (o *options) open(ctx context.Context) (*session, error) {
	backend, closeFn, err := o.openStore(ctx)
	if err != nil {
		return nil, err
	}
	storeCfg := store.DefaultConfig()
	storeCfg.Logger = o.logger
	es := store.NewEntities(backend, storeCfg)

	cfgOpts := config.DefaultOptions()
	cfgOpts.Logger = o.logger
	settings, err := config.New(es, cfgOpts)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	if err := es.Load(); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return &session{config: settings, close: closeFn}, nil
}

// tableWait bounds how long table creation waits for tables to become active.
const tableWait = 2 * time.Minute
