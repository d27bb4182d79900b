package marginalia

import "time"

// Config holds the on-disk configuration.
type Config struct {
	// APIBase is the annotation service API root, e.g.
	// "https://api.hypothes.is/api".
	APIBase string `yaml:"api_base"`

	// APIToken authenticates against the annotation service. Empty
	// means remote operations are unavailable.
	APIToken string `yaml:"api_token,omitempty"`

	// Username is the annotation service account name.
	Username string `yaml:"username,omitempty"`

	// Groups lists the annotation group IDs to sync.
	Groups []string `yaml:"groups,omitempty"`

	// DBPath is the location of the local tag index database.
	DBPath string `yaml:"db_path"`

	// AnnotationTemplate renders annotations to markdown for preview.
	// Empty means no template has been configured yet.
	AnnotationTemplate string `yaml:"annotation_template,omitempty"`

	// LastSync records the updated-cursor of the most recent sync.
	LastSync time.Time `yaml:"last_sync,omitempty"`
}

// TemplateConfigured reports whether an annotation template is set.
func (c *Config) TemplateConfigured() bool {
	return c.AnnotationTemplate != ""
}

// Validate returns an error if the config contains invalid fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return Errorf(EINVALID, "database path required")
	}
	return nil
}

// ConfigService reads and writes the configuration file.
type ConfigService interface {
	// Load reads the configuration, returning defaults if the file
	// does not exist yet.
	Load() (*Config, error)

	// Save writes the configuration, creating the parent directory
	// if needed.
	Save(cfg *Config) error

	// Path returns the configuration file location.
	Path() string
}
