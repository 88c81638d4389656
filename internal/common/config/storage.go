package config

type (
	// StorageConfig selects where uploaded files live
	StorageConfig struct {
		Type string            `yaml:"type"` // disk, s3 or gcs
		Disk DiskStorageConfig `yaml:"disk"`
		S3   S3StorageConfig   `yaml:"s3"`
		GCS  GCSStorageConfig  `yaml:"gcs"`
	}

	DiskStorageConfig struct {
		Path string `yaml:"path"` // root directory for uploaded files
	}

	S3StorageConfig struct {
		Bucket       string `yaml:"bucket"`
		Region       string `yaml:"region"`
		Endpoint     string `yaml:"endpoint"`       // custom endpoint for S3 compatible stores
		UsePathStyle bool   `yaml:"use_path_style"` // required by most S3 compatible stores
		Prefix       string `yaml:"prefix"`
	}

	GCSStorageConfig struct {
		Bucket          string `yaml:"bucket"`
		Prefix          string `yaml:"prefix"`
		CredentialsFile string `yaml:"credentials_file"` // empty uses application default credentials
	}
)
