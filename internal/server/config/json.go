package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/enquirykeeper/internal/flagx"
	"github.com/dmitrijs2005/enquirykeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which accepts both string values
// such as "10s" and integer nanoseconds.
//
// Fields left out of the file keep the value already present in Config, so a
// partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP  *string             `json:"endpoint_addr_http"`
	EndpointAddrGRPC  *string             `json:"endpoint_addr_grpc"`
	DatabaseDSN       *string             `json:"database_dsn"`
	SecretKey         *string             `json:"secret_key"`
	AttachmentBackend *string             `json:"attachment_backend"`
	S3RootUser        *string             `json:"s3_root_user"`
	S3RootPassword    *string             `json:"s3_root_password"`
	S3Bucket          *string             `json:"s3_bucket"`
	S3Region          *string             `json:"s3_region"`
	S3BaseEndpoint    *string             `json:"s3_base_endpoint"`
	RedisAddr         *string             `json:"redis_addr"`
	SearchStream      *string             `json:"search_stream"`
	SearchQueueSize   *int                `json:"search_queue_size"`
	MaxUploadSize     *int64              `json:"max_upload_size"`
	MaxPhotos         *int                `json:"max_photos"`
	ShutdownTimeout   *timex.Duration     `json:"shutdown_timeout"`
	LogLevel          *string             `json:"log_level"`
	RolePermissions   map[string][]string `json:"role_permissions"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c/-config flags or the CONFIG environment
// variable (see flagx.JsonConfigFlags). If none is set, nothing is loaded.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.AttachmentBackend, c.AttachmentBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.SearchStream, c.SearchStream)
	setString(&config.LogLevel, c.LogLevel)

	if c.SearchQueueSize != nil {
		config.SearchQueueSize = *c.SearchQueueSize
	}
	if c.MaxUploadSize != nil {
		config.MaxUploadSize = *c.MaxUploadSize
	}
	if c.MaxPhotos != nil {
		config.MaxPhotos = *c.MaxPhotos
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.RolePermissions != nil {
		config.RolePermissions = c.RolePermissions
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
