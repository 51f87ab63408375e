package cloud

import (
	"github.com/openretro/retroshell/pkg/config"
	"github.com/openretro/retroshell/pkg/logger"
)

type Storage interface {
	Save(name string, data []byte, tags map[string]string) (err error)
	Load(name string) (data []byte, err error)
	Has(name string) bool
}

// Store makes a cloud storage client from the config.
// An empty provider returns nil storage, which disables cloud saves.
func Store(conf config.Storage, log *logger.Logger) (Storage, error) {
	var st Storage
	var err error
	switch conf.Provider {
	case "s3":
		st, err = NewS3Client(conf.S3Endpoint, conf.S3BucketName, conf.S3AccessKeyId, conf.S3SecretAccessKey, log)
	default:
	}
	return st, err
}
