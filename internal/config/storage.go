package config

// StorageConfig describes the S3-compatible bucket holding uploaded images.
// Endpoint may point at AWS, Cloudflare R2 or MinIO; leave it empty for AWS.
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	UsePathStyle    bool
}

// Enabled reports whether uploads can be stored.
func (s StorageConfig) Enabled() bool { return s.Bucket != "" }

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Endpoint:        envStr("S3_ENDPOINT", ""),
		Region:          envStr("S3_REGION", "auto"),
		Bucket:          envStr("S3_BUCKET", ""),
		AccessKeyID:     envStr("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: envStr("S3_SECRET_ACCESS_KEY", ""),
		PublicURL:       envStr("S3_PUBLIC_URL", ""),
		UsePathStyle:    envBool("S3_USE_PATH_STYLE", false),
	}
}
