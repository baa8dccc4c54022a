// internal/store/milvus.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/logging"
)

// Field names of the chunk collection.
const (
	fieldID          = "id"
	fieldDocument    = "document"
	fieldSection     = "section"
	fieldChunkIndex  = "chunk_index"
	fieldText        = "text"
	fieldContentHash = "content_hash"
	fieldCreatedAt   = "created_at"
	fieldEmbedding   = "embedding"
)

// MilvusStore keeps chunks in a Milvus collection with an HNSW cosine
// index on the embedding field. It is the backend for corpora that outgrow
// the embedded SQLite scan.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string
	dim        int
}

// NewMilvusStore connects to the cluster and ensures the chunk collection
// exists and is loaded.
func NewMilvusStore(ctx context.Context, address, collection string, dimension int) (*MilvusStore, error) {
	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: address})
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("connect to milvus at %s: %w", address, err))
	}

	s := &MilvusStore{client: client, collection: collection, dim: dimension}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("check collection %s: %w", s.collection, err))
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Embedded HR document chunks",
			Fields: []*entity.Field{
				{
					Name:       fieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "256"},
				},
				{
					Name:       fieldDocument,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "512"},
				},
				{
					Name:     fieldSection,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:     fieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       fieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       fieldContentHash,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:     fieldCreatedAt,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       fieldEmbedding,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.dim)},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(s.collection, schema)
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return fault.Wrap(fault.KindStorage, fmt.Errorf("create collection %s: %w", s.collection, err))
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		indexOpt := milvusclient.NewCreateIndexOption(s.collection, fieldEmbedding, idx)
		if _, err := s.client.CreateIndex(ctx, indexOpt); err != nil {
			return fault.Wrap(fault.KindStorage, fmt.Errorf("create embedding index on %s: %w", s.collection, err))
		}

		logging.LogEvent("[STORE] Created milvus collection %s (dim=%d)", s.collection, s.dim)
	}

	loadOpt := milvusclient.NewLoadCollectionOption(s.collection)
	if _, err := s.client.LoadCollection(ctx, loadOpt); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("load collection %s: %w", s.collection, err))
	}
	return nil
}

// Upsert inserts the chunks, replacing existing ids.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := checkDimensions(chunks, s.dim); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	docs := make([]string, len(chunks))
	sections := make([]int64, len(chunks))
	indexes := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	hashes := make([]string, len(chunks))
	created := make([]int64, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		docs[i] = chunk.Document
		sections[i] = int64(chunk.Section)
		indexes[i] = int64(chunk.Index)
		texts[i] = chunk.Text
		hashes[i] = chunk.ContentHash
		created[i] = chunk.CreatedAt.UTC().Unix()
		vectors[i] = chunk.Embedding
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldDocument, docs),
		column.NewColumnInt64(fieldSection, sections),
		column.NewColumnInt64(fieldChunkIndex, indexes),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldContentHash, hashes),
		column.NewColumnInt64(fieldCreatedAt, created),
		column.NewColumnFloatVector(fieldEmbedding, s.dim, vectors),
	)
	if _, err := s.client.Upsert(ctx, insertOpt); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("upsert %d chunks: %w", len(chunks), err))
	}
	return nil
}

// Search runs an ANN search over the embedding field and returns the top k
// chunks, best first.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if err := checkQueryVector(vector, s.dim, k); err != nil {
		return nil, err
	}

	searchOpt := milvusclient.NewSearchOption(s.collection, k, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldEmbedding).
		WithOutputFields(fieldDocument, fieldSection, fieldChunkIndex, fieldText, fieldContentHash, fieldCreatedAt)

	resultSets, err := s.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, fmt.Errorf("search collection %s: %w", s.collection, err))
	}

	var results []SearchResult
	for _, rs := range resultSets {
		for i := 0; i < rs.ResultCount; i++ {
			chunk, err := chunkFromResult(rs, i)
			if err != nil {
				return nil, err
			}
			results = append(results, SearchResult{
				Chunk: chunk,
				Score: float64(rs.Scores[i]),
			})
		}
	}
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func chunkFromResult(rs milvusclient.ResultSet, i int) (Chunk, error) {
	var chunk Chunk

	id, err := rs.IDs.GetAsString(i)
	if err != nil {
		return Chunk{}, fault.Wrap(fault.KindStorage, fmt.Errorf("read result id: %w", err))
	}
	chunk.ID = id

	strFields := map[string]*string{
		fieldDocument:    &chunk.Document,
		fieldText:        &chunk.Text,
		fieldContentHash: &chunk.ContentHash,
	}
	for name, dst := range strFields {
		col := rs.GetColumn(name)
		if col == nil {
			continue
		}
		v, err := col.GetAsString(i)
		if err != nil {
			return Chunk{}, fault.Wrap(fault.KindStorage, fmt.Errorf("read result field %s: %w", name, err))
		}
		*dst = v
	}

	if col := rs.GetColumn(fieldSection); col != nil {
		v, err := col.GetAsInt64(i)
		if err != nil {
			return Chunk{}, fault.Wrap(fault.KindStorage, fmt.Errorf("read result field %s: %w", fieldSection, err))
		}
		chunk.Section = int(v)
	}
	if col := rs.GetColumn(fieldChunkIndex); col != nil {
		v, err := col.GetAsInt64(i)
		if err != nil {
			return Chunk{}, fault.Wrap(fault.KindStorage, fmt.Errorf("read result field %s: %w", fieldChunkIndex, err))
		}
		chunk.Index = int(v)
	}
	if col := rs.GetColumn(fieldCreatedAt); col != nil {
		v, err := col.GetAsInt64(i)
		if err != nil {
			return Chunk{}, fault.Wrap(fault.KindStorage, fmt.Errorf("read result field %s: %w", fieldCreatedAt, err))
		}
		chunk.CreatedAt = time.Unix(v, 0).UTC()
	}

	return chunk, nil
}

// DeleteDocument removes every chunk of the named document.
func (s *MilvusStore) DeleteDocument(ctx context.Context, document string) (int64, error) {
	deleteOpt := milvusclient.NewDeleteOption(s.collection).
		WithExpr(fmt.Sprintf("%s == %q", fieldDocument, document))
	res, err := s.client.Delete(ctx, deleteOpt)
	if err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("delete document %s: %w", document, err))
	}
	return res.DeleteCount, nil
}

// Count reports the number of stored chunks.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	queryOpt := milvusclient.NewQueryOption(s.collection).WithOutputFields("count(*)")
	rs, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("count collection %s: %w", s.collection, err))
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, fault.Wrap(fault.KindStorage, fmt.Errorf("read count result: %w", err))
	}
	return n, nil
}

// Clear removes all chunks from the collection.
func (s *MilvusStore) Clear(ctx context.Context) error {
	deleteOpt := milvusclient.NewDeleteOption(s.collection).
		WithExpr(fmt.Sprintf(`%s != ""`, fieldID))
	if _, err := s.client.Delete(ctx, deleteOpt); err != nil {
		return fault.Wrap(fault.KindStorage, fmt.Errorf("clear collection %s: %w", s.collection, err))
	}
	return nil
}

// Close disconnects from the cluster.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}
