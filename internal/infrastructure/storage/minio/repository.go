package minio

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

const documentContentType = "application/json"

// DocumentRepository stores annotation documents as JSON objects in the
// document bucket.  Submitted documents live under the input prefix and
// mined ones under the annotated prefix with the same relative key.
type DocumentRepository struct {
	client          *MinIOClient
	inputPrefix     string
	annotatedPrefix string
	logger          logging.Logger
}

// NewDocumentRepository creates a repository over client.
func NewDocumentRepository(client *MinIOClient, log logging.Logger) *DocumentRepository {
	return &DocumentRepository{
		client:          client,
		inputPrefix:     client.config.InputPrefix,
		annotatedPrefix: client.config.AnnotatedPrefix,
		logger:          logging.OrNop(log).Named("documents"),
	}
}

// AnnotatedKey maps an input key to the key its mined version is saved under.
func (r *DocumentRepository) AnnotatedKey(key string) string {
	return r.annotatedPrefix + strings.TrimPrefix(key, r.inputPrefix)
}

// Load fetches and decodes the document at key.  A document without a
// filename is named by its key.
func (r *DocumentRepository) Load(ctx context.Context, key string) (*annotation.Document, error) {
	api, err := r.client.GetClient()
	if err != nil {
		return nil, err
	}
	obj, err := api.GetObject(ctx, r.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.New(errors.ErrCodeDocumentNotFound, "annotation document not found").WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to get document").WithDetail(key)
	}
	defer obj.Close()

	doc, err := annotation.Decode(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load document").WithDetail(key)
	}
	if doc.Filename == annotation.StdinFilename {
		doc.Filename = key
	}
	return doc, nil
}

// Save encodes doc and writes it to key.
func (r *DocumentRepository) Save(ctx context.Context, key string, doc *annotation.Document) error {
	api, err := r.client.GetClient()
	if err != nil {
		return err
	}
	data, err := annotation.EncodeBytes(doc)
	if err != nil {
		return err
	}
	_, err = api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: documentContentType,
		UserMetadata: map[string]string{
			"opinions": strconv.Itoa(len(doc.Opinions())),
		},
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to put document").WithDetail(key)
	}
	r.logger.Debug("document saved", logging.String("key", key), logging.Int("bytes", len(data)))
	return nil
}

// Exists reports whether an object is stored at key.
func (r *DocumentRepository) Exists(ctx context.Context, key string) (bool, error) {
	api, err := r.client.GetClient()
	if err != nil {
		return false, err
	}
	_, err = api.StatObject(ctx, r.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorage, "failed to stat document").WithDetail(key)
	}
	return true, nil
}

// List returns the keys under prefix, recursively.
func (r *DocumentRepository) List(ctx context.Context, prefix string) ([]string, error) {
	api, err := r.client.GetClient()
	if err != nil {
		return nil, err
	}
	var keys []string
	for obj := range api.ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "failed to list documents").WithDetail(prefix)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// ListSubmitted lists the keys under the input prefix.
func (r *DocumentRepository) ListSubmitted(ctx context.Context) ([]string, error) {
	return r.List(ctx, r.inputPrefix)
}

// Delete removes the object at key.
func (r *DocumentRepository) Delete(ctx context.Context, key string) error {
	api, err := r.client.GetClient()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, r.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to remove document").WithDetail(key)
	}
	return nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
