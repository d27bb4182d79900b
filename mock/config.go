package mock

import (
	"github.com/mkrol/marginalia"
)

var _ marginalia.ConfigService = (*ConfigService)(nil)

type ConfigService struct {
	LoadFn func() (*marginalia.Config, error)
	SaveFn func(cfg *marginalia.Config) error
	PathFn func() string
}

func (m *ConfigService) Load() (*marginalia.Config, error) {
	return m.LoadFn()
}

func (m *ConfigService) Save(cfg *marginalia.Config) error {
	return m.SaveFn(cfg)
}

func (m *ConfigService) Path() string {
	return m.PathFn()
}
