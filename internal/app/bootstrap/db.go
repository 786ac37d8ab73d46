// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stayhome/internal/app/store/dbset"
	"github.com/dalemusser/stayhome/internal/app/system/indexes"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/seeding"
	"github.com/dalemusser/stayhome/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects the student, owner and common databases, then sets up
// file storage and the mailer.
//
// Databases sharing a URI share one client.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	var deps DBDeps
	byURI := map[string]*mongo.Client{}
	connect := func(uri, dbName string) (*mongo.Database, error) {
		client, ok := byURI[uri]
		if !ok {
			var err error
			client, err = wafflemongo.ConnectWithPool(ctx, uri, dbName, poolCfg)
			if err != nil {
				return nil, err
			}
			byURI[uri] = client
			deps.Clients = append(deps.Clients, client)
		}
		logger.Info("connected to MongoDB",
			zap.String("database", dbName),
			zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
			zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
		)
		return client.Database(dbName), nil
	}

	studentURI, ownerURI, commonURI := appCfg.mongoURIs()
	var err error
	var dbs dbset.Set
	if dbs.Student, err = connect(studentURI, appCfg.StudentDB); err != nil {
		disconnectAll(ctx, deps.Clients, logger)
		return DBDeps{}, fmt.Errorf("student database: %w", err)
	}
	if dbs.Owner, err = connect(ownerURI, appCfg.OwnerDB); err != nil {
		disconnectAll(ctx, deps.Clients, logger)
		return DBDeps{}, fmt.Errorf("owner database: %w", err)
	}
	if dbs.Common, err = connect(commonURI, appCfg.CommonDB); err != nil {
		disconnectAll(ctx, deps.Clients, logger)
		return DBDeps{}, fmt.Errorf("common database: %w", err)
	}
	deps.DBs = dbs
	if !dbs.SameClient() {
		logger.Warn("databases use separate clients; cross-database writes will not be atomic")
	}

	switch appCfg.StorageType {
	case "s3":
		deps.FileStorage, err = storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			disconnectAll(ctx, deps.Clients, logger)
			return DBDeps{}, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		logger.Info("initialized S3/CloudFront file storage",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix),
		)
	case "local", "":
		deps.FileStorage, err = storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			disconnectAll(ctx, deps.Clients, logger)
			return DBDeps{}, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		logger.Info("initialized local file storage", zap.String("path", appCfg.StorageLocalPath))
	default:
		disconnectAll(ctx, deps.Clients, logger)
		return DBDeps{}, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	deps.Mailer = mailer.NewSender(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
	if appCfg.MailSMTPHost == "" {
		logger.Warn("no SMTP host configured; emails are logged, not sent")
	} else {
		logger.Info("initialized email mailer",
			zap.String("host", appCfg.MailSMTPHost),
			zap.Int("port", appCfg.MailSMTPPort),
		)
	}

	return deps, nil
}

// EnsureSchema creates collections and validators, builds indexes and seeds
// the system roles and the configured admin account.
//
// The context has a timeout based on coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, deps.DBs); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, deps.DBs); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("seeding default data")
	admin := seeding.Admin{
		Email:    appCfg.SeedAdminEmail,
		Password: appCfg.SeedAdminPassword,
		Name:     appCfg.SeedAdminName,
	}
	if err := seeding.SeedAll(ctx, deps.DBs, admin, logger); err != nil {
		logger.Error("failed to seed default data", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}

func disconnectAll(ctx context.Context, clients []*mongo.Client, logger *zap.Logger) error {
	var firstErr error
	for _, c := range clients {
		if err := c.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
