package admin

import (
	"context"
	"errors"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/moderniselife/GFM/internal/console"
)

type objectStore struct {
	bucket *storage.BucketHandle
	name   string
}

func toObject(attrs *storage.ObjectAttrs) console.Object {
	return console.Object{
		Name:        path.Base(attrs.Name),
		Path:        attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
	}
}

func (o *objectStore) List(ctx context.Context, prefix string) ([]string, []console.Object, error) {
	it := o.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	folders := []string{}
	objects := []console.Object{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, nil, translate(err, "Bucket "+o.name)
		}
		if attrs.Prefix != "" {
			folders = append(folders, attrs.Prefix)
			continue
		}
		// Folder placeholder objects created by the console.
		if attrs.Name == prefix {
			continue
		}
		objects = append(objects, toObject(attrs))
	}
	return folders, objects, nil
}

func (o *objectStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (*console.Object, error) {
	w := o.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return nil, translate(err, "Upload of "+name)
	}
	if err := w.Close(); err != nil {
		return nil, translate(err, "Upload of "+name)
	}
	obj := toObject(w.Attrs())
	return &obj, nil
}

func (o *objectStore) Copy(ctx context.Context, src, dst string) error {
	if _, err := o.bucket.Object(dst).CopierFrom(o.bucket.Object(src)).Run(ctx); err != nil {
		return translate(err, "Object "+src)
	}
	return nil
}

func (o *objectStore) Delete(ctx context.Context, name string) error {
	if err := o.bucket.Object(name).Delete(ctx); err != nil {
		return translate(err, "Object "+name)
	}
	return nil
}

func (o *objectStore) Open(ctx context.Context, name string) (io.ReadCloser, *console.Object, error) {
	r, err := o.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, nil, translate(err, "Object "+name)
	}
	obj := &console.Object{
		Name:        path.Base(name),
		Path:        name,
		Size:        r.Attrs.Size,
		ContentType: r.Attrs.ContentType,
		Updated:     r.Attrs.LastModified,
	}
	return r, obj, nil
}
