package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/smallbiznis/labdesk/internal/storage"
	usagelogdomain "github.com/smallbiznis/labdesk/internal/usagelog/domain"
)

// Bucket reads exports laid out as <root>/<YYYY-MM>/inv/<file>.
// Files ending in .gz or .zst are decompressed transparently.
type Bucket struct {
	bucket storage.Bucket
	root   string
}

func NewBucket(bucket storage.Bucket, root string) *Bucket {
	return &Bucket{bucket: bucket, root: strings.Trim(root, "/")}
}

func (b *Bucket) ListMonthFolders(ctx context.Context) ([]string, error) {
	objs, err := b.bucket.List(ctx, b.prefix())
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, obj := range objs {
		rest := strings.TrimPrefix(obj.Key, b.prefix())
		month, _, found := strings.Cut(rest, "/")
		if !found || !usagelogdomain.ValidMonth(month) {
			continue
		}
		seen[month] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Bucket) ListFiles(ctx context.Context, month string) ([]usagelogdomain.LogFile, error) {
	if !usagelogdomain.ValidMonth(month) {
		return nil, fmt.Errorf("%w: %q", usagelogdomain.ErrInvalidMonth, month)
	}

	monthPrefix := b.prefix() + month + "/"
	objs, err := b.bucket.List(ctx, monthPrefix)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("%w: %s", usagelogdomain.ErrMonthNotFound, month)
	}

	logPrefix := monthPrefix + usagelogdomain.LogFolder + "/"
	files := make([]usagelogdomain.LogFile, 0, len(objs))
	folderSeen := false
	for _, obj := range objs {
		if !strings.HasPrefix(obj.Key, logPrefix) {
			continue
		}
		folderSeen = true
		name := strings.TrimPrefix(obj.Key, logPrefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}

		raw, err := b.bucket.Get(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", obj.Key, err)
		}
		data, err := decode(name, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", obj.Key, err)
		}
		files = append(files, usagelogdomain.LogFile{Name: name, Data: data})
	}
	if !folderSeen {
		return nil, fmt.Errorf("%w: %s/%s", usagelogdomain.ErrLogFolderNotFound, month, usagelogdomain.LogFolder)
	}
	return files, nil
}

func (b *Bucket) prefix() string {
	if b.root == "" {
		return ""
	}
	return b.root + "/"
}

func decode(name string, raw []byte) ([]byte, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case ".zst":
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return zr.DecodeAll(raw, nil)
	default:
		return raw, nil
	}
}
