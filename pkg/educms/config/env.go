package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//
//	DATABASE_URL - "memory" (default), "postgres://..." or "mongodb://.../dbname"
//	DB_SCHEMA - Postgres schema for the tables
//
// Media:
//
//	MEDIA_URL - one of:
//	            - "memory://" (default)
//	            - "file:///path/to/media"
//	            - "s3://bucket/prefix?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION are honoured for s3.
//
// Events:
//
//	REDIS_URL - "redis://host:6379/0"; publishing is off when unset
//	REDIS_CHANNEL - pub/sub channel name
//
// Deletion:
//
//	DELETE_ATTEMPTS - attempts per deletion (default: 3)
//	DELETE_BACKOFF - pause between attempts, e.g. "250ms"
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
			c.DBSchema = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}
		if err := applyMediaEnv(prefix, c); err != nil {
			return err
		}

		if v, ok := lookupEnv(prefix, "REDIS_URL"); ok && v != "" {
			if !strings.HasPrefix(v, "redis://") && !strings.HasPrefix(v, "rediss://") {
				return fmt.Errorf("unsupported REDIS_URL format: %s (use 'redis://...')", v)
			}
			c.RedisURL = v
		}
		if v, ok := lookupEnv(prefix, "REDIS_CHANNEL"); ok && v != "" {
			c.RedisChannel = v
		}

		if n, ok, err := parseIntEnv(prefix, "DELETE_ATTEMPTS"); err != nil {
			return err
		} else if ok {
			c.DeleteAttempts = n
		}
		if d, ok, err := parseDurationEnv(prefix, "DELETE_BACKOFF"); err != nil {
			return err
		} else if ok {
			c.DeleteBackoff = d
		}
		return nil
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	switch {
	case !hasURL || dbURL == "" || dbURL == "memory":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		c.DatabaseType = DatabaseMongo
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'mongodb://...')", dbURL)
	}
	return nil
}

// applyMediaEnv applies media backend configuration from environment
func applyMediaEnv(prefix string, c *ServerConfig) error {
	raw, hasURL := lookupEnv(prefix, "MEDIA_URL")
	if !hasURL || raw == "" || raw == "memory" || raw == "memory://" {
		c.Media = MediaConfig{Type: MediaMemory}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid MEDIA_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return fmt.Errorf("filesystem path cannot be empty in MEDIA_URL")
		}
		c.Media = MediaConfig{Type: MediaFS, BaseDir: u.Path}
		return nil
	case "s3":
		return applyS3Media(u, c)
	}
	return fmt.Errorf("unsupported MEDIA_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
}

// applyS3Media configures S3 media from URL
// Format: s3://bucket/prefix?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3Media(u *url.URL, c *ServerConfig) error {
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in MEDIA_URL")
	}
	q := u.Query()

	cfg := c.Media.S3
	cfg.Bucket = u.Host
	cfg.Prefix = strings.Trim(u.Path, "/")
	cfg.Region = q.Get("region")
	cfg.Endpoint = q.Get("endpoint")
	if v := q.Get("path_style"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid path_style in MEDIA_URL: %w", err)
		}
		cfg.UsePathStyle = b
	}
	if v := q.Get("create_bucket"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid create_bucket in MEDIA_URL: %w", err)
		}
		cfg.CreateBucketIfNotExist = b
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		cfg.AccessKeyID = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		cfg.SecretAccessKey = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && cfg.Region == "" {
		cfg.Region = region
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	c.Media = MediaConfig{Type: MediaS3, S3: cfg}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseDurationEnv(prefix, key string) (time.Duration, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid duration for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
