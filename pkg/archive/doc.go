// Package archive persists received images.
//
// A Store receives every image the page displays and returns the key it
// was written under. Three backends are provided:
//
//	store, _ := archive.NewDiskStore("received")
//	store := archive.NewS3Store(client, "bucket", "lens/")
//	store := archive.NewRedisStore(rdb, "lens:", 24*time.Hour)
//
// Open builds the backend named by the archive section of lens.json.
// archive.ttl expires Redis keys and, for the disk store, removes files
// older than the TTL.
package archive
