package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/akuzmenko/blogpix/internal/conf"
	mediadata "github.com/akuzmenko/blogpix/internal/media/data"
	"github.com/akuzmenko/blogpix/internal/pkg/database"
	"github.com/akuzmenko/blogpix/internal/pkg/logger"
	postdata "github.com/akuzmenko/blogpix/internal/post/data"
	userdata "github.com/akuzmenko/blogpix/internal/user/data"
)

// Data bundles the shared infrastructure handles
type Data struct {
	DB     *database.DB
	Blobs  *mediadata.LocalStore
	Logger *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := db.AutoMigrate(
		&userdata.UserPO{},
		&userdata.ProfilePO{},
		&postdata.PostPO{},
		&mediadata.AssetPO{},
	); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	blobs, err := mediadata.NewLocalStore(config.Media.Root, log.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init blob store: %w", err)
	}

	d := &Data{
		DB:     db,
		Blobs:  blobs,
		Logger: log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if err := db.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}

	return d, cleanup, nil
}
