package admin

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/console"
)

const countAlias = "total"

type firestoreStore struct {
	client *firestore.Client
}

func (f *firestoreStore) Get(ctx context.Context, path string) (*console.Document, error) {
	ref := f.client.Doc(path)
	if ref == nil {
		return nil, apperrors.Preconditionf("Invalid document path: %s", path)
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, translate(err, "Document "+path)
	}
	return toDocument(path, snap), nil
}

func (f *firestoreStore) collection(path string) (*firestore.CollectionRef, error) {
	col := f.client.Collection(path)
	if col == nil {
		return nil, apperrors.Preconditionf("Invalid collection path: %s", path)
	}
	return col, nil
}

func (f *firestoreStore) List(ctx context.Context, collection string, offset, limit int) ([]console.Document, error) {
	col, err := f.collection(collection)
	if err != nil {
		return nil, err
	}
	iter := col.OrderBy(firestore.DocumentID, firestore.Asc).Offset(offset).Limit(limit).Documents(ctx)
	defer iter.Stop()

	docs := make([]console.Document, 0, limit)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translate(err, "Collection "+collection)
		}
		docs = append(docs, *toDocument(collection+"/"+snap.Ref.ID, snap))
	}
	return docs, nil
}

func (f *firestoreStore) Count(ctx context.Context, collection string) (int, error) {
	col, err := f.collection(collection)
	if err != nil {
		return 0, err
	}
	res, err := col.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, translate(err, "Collection "+collection)
	}
	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, apperrors.External("Unexpected count aggregation result", nil)
	}
	return int(v.GetIntegerValue()), nil
}

func (f *firestoreStore) RootCollections(ctx context.Context) ([]string, error) {
	iter := f.client.Collections(ctx)
	var ids []string
	for {
		col, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, translate(err, "Collections")
		}
		ids = append(ids, col.ID)
	}
	return ids, nil
}

func (f *firestoreStore) Delete(ctx context.Context, path string) error {
	ref := f.client.Doc(path)
	if ref == nil {
		return apperrors.Preconditionf("Invalid document path: %s", path)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return translate(err, "Document "+path)
	}
	return nil
}

func toDocument(path string, snap *firestore.DocumentSnapshot) *console.Document {
	return &console.Document{
		ID:   snap.Ref.ID,
		Path: path,
		Data: jsonMap(snap.Data()),
	}
}

func jsonMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonValue(v)
	}
	return out
}

// jsonValue replaces document references with their relative path so the UI can follow them.
func jsonValue(v any) any {
	switch t := v.(type) {
	case *firestore.DocumentRef:
		if t == nil {
			return nil
		}
		return map[string]any{"__ref__": refPath(t)}
	case map[string]any:
		return jsonMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = jsonValue(item)
		}
		return out
	default:
		return v
	}
}

func refPath(ref *firestore.DocumentRef) string {
	const marker = "/documents/"
	if i := strings.Index(ref.Path, marker); i >= 0 {
		return ref.Path[i+len(marker):]
	}
	return ref.ID
}
