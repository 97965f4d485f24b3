package archive

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vango-dev/lens/internal/config"
	"github.com/vango-dev/lens/internal/errors"
)

// Store is the interface for archive backends.
type Store interface {
	// Save writes obj and returns the key it was stored under.
	Save(ctx context.Context, obj Object) (key string, err error)
}

// Object is one received image.
type Object struct {
	// ID is the object URL id the image was displayed under.
	ID string `json:"id"`

	// Seq is the gallery sequence number.
	Seq uint64 `json:"seq"`

	// ContentType is the sniffed MIME type.
	ContentType string `json:"contentType"`

	// Width and Height are zero when the payload did not decode.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// ReceivedAt is when the message arrived.
	ReceivedAt time.Time `json:"receivedAt"`

	// Data is the payload.
	Data []byte `json:"-"`
}

// meta is the sidecar written next to the payload.
type meta struct {
	Object
	Size int `json:"size"`
}

func metaFor(obj Object) meta {
	return meta{Object: obj, Size: len(obj.Data)}
}

// Key returns the storage key of obj without any backend prefix:
// the receive time, the id and an extension derived from the content type.
func Key(obj Object) string {
	ts := obj.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format("20060102T150405Z") + "-" + obj.ID + Extension(obj.ContentType)
}

// Extension maps a content type to a file extension.
func Extension(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(ct) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

// Open builds the store named by cfg.Archive. It returns nil and no error
// when archiving is disabled. With archive.ttl set, a disk store is swept
// for expired images until ctx ends.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	a := cfg.Archive
	switch a.Kind {
	case config.ArchiveNone:
		return nil, nil

	case config.ArchiveDisk:
		store, err := NewDiskStore(a.Dir)
		if err != nil {
			return nil, err
		}
		if ttl := cfg.ArchiveTTL(); ttl > 0 {
			go store.Expire(ctx, ttl, sweepInterval(ttl))
		}
		return store, nil

	case config.ArchiveS3:
		client := NewS3Client(S3Options{
			Region:   a.Region,
			Endpoint: a.Endpoint,
		})
		return NewS3Store(client, a.Bucket, a.Prefix), nil

	case config.ArchiveRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: a.RedisAddr,
			DB:   a.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, errors.New("L050").
				WithDetail("Redis at " + a.RedisAddr + " is not reachable").
				Wrap(err)
		}
		return NewRedisStore(rdb, a.Prefix, cfg.ArchiveTTL()), nil
	}

	return nil, errors.New("L032").WithDetail("archive.kind must be disk, s3 or redis: " + a.Kind)
}

func saveError(key string, err error) error {
	return errors.New("L050").WithDetail("Writing " + key).Wrap(err)
}
