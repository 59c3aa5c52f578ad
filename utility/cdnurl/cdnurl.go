// Package cdnurl derives public and thumbnail URLs from canonical storage URLs.
//
// Requests are spread over mirror hosts m1..mN of the serving origin so browsers
// open more parallel connections. The mirror is picked from the CRC32 of the object key,
// so a given object always maps to the same host.
package cdnurl

import (
	"hash/crc32"
	"strconv"
	"strings"
)

const DefaultShardCount = 6

type Config struct {
	// StoragePrefix is the canonical storage URL prefix, eg. "http://bucket.s3.amazonaws.com/"
	StoragePrefix string

	// CDNOrigin replaces StoragePrefix in public URLs. Empty disables the rewrite.
	CDNOrigin string

	// ShardCount is the number of mirror hosts. 0 disables sharding.
	ShardCount int

	// ThumbnailService is the thumbnail origin, "<service><w>x<h>/<key>" is requested
	ThumbnailService string

	// Production disables the domain hint sent to the thumbnail service
	Production bool
}

type Builder struct {
	config Config
}

func New(config Config) *Builder {
	return &Builder{config: config}
}

// PublicURL returns the URL clients should load ref from.
// References outside the storage prefix are returned as is.
func (b *Builder) PublicURL(ref string) string {
	if ref == "" || b.config.CDNOrigin == "" || !b.canonical(ref) {
		return ref
	}
	shard := b.shard(ref)
	u := strings.Replace(ref, b.config.StoragePrefix, b.config.CDNOrigin, 1)
	return withMirror(u, shard)
}

// ThumbnailURL returns the thumbnail service URL of ref for the given size.
// Without a size, a thumbnail service or a stored object the public URL is returned.
func (b *Builder) ThumbnailURL(ref string, width, height int) string {
	if width == 0 && height == 0 {
		return b.PublicURL(ref)
	}
	return b.thumbnail(ref, strconv.Itoa(width)+"x"+strconv.Itoa(height))
}

// ThumbnailURLSpec is ThumbnailURL with the size given as "WxH".
func (b *Builder) ThumbnailURLSpec(ref, size string) string {
	return b.thumbnail(ref, size)
}

func (b *Builder) thumbnail(ref, size string) string {
	if ref == "" || size == "" || b.config.ThumbnailService == "" || !b.canonical(ref) {
		return b.PublicURL(ref)
	}
	shard := b.shard(ref)
	u := strings.Replace(ref, b.config.StoragePrefix, b.config.ThumbnailService+size+"/", 1)
	if !b.config.Production {
		u = u + "?domain=" + b.originHost()
	}
	return withMirror(u, shard)
}

// Shard returns the mirror index (1..ShardCount) of ref, 0 when sharding is disabled.
func (b *Builder) Shard(ref string) int {
	return b.shard(ref)
}

func (b *Builder) shard(ref string) int {
	if b.config.ShardCount <= 0 {
		return 0
	}
	key := strings.TrimPrefix(ref, b.config.StoragePrefix)
	return int(crc32.ChecksumIEEE([]byte(key))%uint32(b.config.ShardCount)) + 1
}

func (b *Builder) canonical(ref string) bool {
	return b.config.StoragePrefix != "" && strings.HasPrefix(ref, b.config.StoragePrefix)
}

// originHost is the storage prefix without scheme and trailing slash
func (b *Builder) originHost() string {
	host := b.config.StoragePrefix
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.TrimRight(host, "/")
}

func withMirror(raw string, shard int) string {
	if shard == 0 {
		return raw
	}
	i := strings.Index(raw, "://")
	if i < 0 {
		return raw
	}
	return raw[:i+3] + "m" + strconv.Itoa(shard) + "." + raw[i+3:]
}
