package libretro

import (
	"github.com/openretro/retroshell/pkg/cloud"
	"github.com/openretro/retroshell/pkg/os"
)

type CloudFrontend struct {
	Emulator
	uid     string
	storage cloud.Storage // a cloud storage to mirror the main save blob
}

// WithCloud adds the ability to keep game states in a cloud storage like Amazon S3.
// It supports only one file of main save state.
func WithCloud(fe Emulator, uid string, storage cloud.Storage) (*CloudFrontend, error) {
	r := &CloudFrontend{Emulator: fe, uid: uid, storage: storage}

	name := fe.SaveStateName()

	if r.storage.Has(name) {
		data, err := r.storage.Load(name)
		if err != nil {
			return nil, err
		}
		// save the data fetched from the cloud to the local directory
		if data != nil {
			if err := os.WriteFile(fe.HashPath(), data, 0644); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (c *CloudFrontend) HasSave() bool {
	if c.storage.Has(c.SaveStateName()) {
		return true
	}
	return c.Emulator.HasSave()
}

func (c *CloudFrontend) SaveGameState() error {
	if err := c.Emulator.SaveGameState(); err != nil {
		return err
	}
	path := c.Emulator.HashPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.storage.Save(c.SaveStateName(), data, map[string]string{
		"uid":  c.uid,
		"type": "retroshell-main-save",
	})
}
