package config

import (
	"errors"
	"fmt"
	"time"
)

// WithPort sets the server port.
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return errors.New("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment name.
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabase selects the repository backend.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case DatabaseMemory, DatabasePostgres, DatabaseMongo:
		default:
			return fmt.Errorf("unsupported database type: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema.
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMongoDatabase overrides the Mongo database name.
func WithMongoDatabase(name string) Option {
	return func(c *ServerConfig) error {
		c.MongoDatabase = name
		return nil
	}
}

// WithMemoryMedia keeps media in process memory.
func WithMemoryMedia() Option {
	return func(c *ServerConfig) error {
		c.Media = MediaConfig{Type: MediaMemory}
		return nil
	}
}

// WithFilesystemMedia stores media under baseDir.
func WithFilesystemMedia(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return errors.New("base directory cannot be empty")
		}
		c.Media = MediaConfig{Type: MediaFS, BaseDir: baseDir}
		return nil
	}
}

// WithS3Media stores media in an S3 bucket.
func WithS3Media(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return errors.New("bucket cannot be empty")
		}
		c.Media.Type = MediaS3
		c.Media.S3.Bucket = bucket
		c.Media.S3.Region = region
		return nil
	}
}

// WithS3Credentials sets static credentials for the S3 media backend.
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Media.S3.AccessKeyID = accessKeyID
		c.Media.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 media backend at an S3-compatible service.
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Media.S3.Endpoint = endpoint
		c.Media.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithRedisEvents publishes lifecycle events to channel on the Redis at url.
func WithRedisEvents(url, channel string) Option {
	return func(c *ServerConfig) error {
		c.RedisURL = url
		if channel != "" {
			c.RedisChannel = channel
		}
		return nil
	}
}

// WithDeletion sets the attempt count and backoff of the deletion orchestrator.
func WithDeletion(attempts int, backoff time.Duration) Option {
	return func(c *ServerConfig) error {
		if attempts < 1 {
			return errors.New("attempts must be at least 1")
		}
		c.DeleteAttempts = attempts
		c.DeleteBackoff = backoff
		return nil
	}
}
