package nanodb

import (
	"github.com/jibon-roy/nano-db/config"
	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/db"
	"github.com/jibon-roy/nano-db/ps"
)

type Instance struct {
	Persistence *ps.Persistence
	// S3 is handed to every engine for s3:// export and import. Nil falls
	// back to the default AWS credential chain.
	S3 *db.S3Config
}

func Open(persistence *ps.Persistence) *Instance {
	return &Instance{
		Persistence: persistence,
	}
}

// OpenConfig builds the persistence described by cfg. An empty DataDir keeps
// everything in memory.
func OpenConfig(cfg config.Config) (*Instance, error) {
	opts := []ps.Option{ps.WithHistory(cfg.History)}
	if cfg.StrictMatch {
		opts = append(opts, ps.WithMatcher(core.FieldMatcher{}))
	}

	var (
		persistence *ps.Persistence
		err         error
	)
	if cfg.DataDir == "" {
		persistence, err = ps.NewMemoryPersistence(opts...)
	} else {
		persistence, err = ps.NewFilePersistence(cfg.DataDir, opts...)
	}
	if err != nil {
		return nil, err
	}

	instance := Open(persistence)
	if cfg.S3 != (config.S3{}) {
		instance.S3 = &db.S3Config{
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
		}
	}
	return instance, nil
}

func (instance *Instance) Engine(identity core.Identity) *db.Engine {
	engine := db.NewEngine(instance.Persistence, identity)
	if instance.S3 != nil {
		engine.WithS3(*instance.S3)
	}
	return engine
}
