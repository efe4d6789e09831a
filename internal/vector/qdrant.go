package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/principia/internal/models"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

const qdrantUpsertBatch = 100

// QdrantIndex stores passages as points in a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// QdrantOptions holds the connection settings for NewQdrantIndex.
type QdrantOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
	Logger     *zap.Logger
}

// NewQdrantIndex connects to Qdrant. The collection is not created; see EnsureCollection.
func NewQdrantIndex(opts QdrantOptions) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, models.NewServiceError("qdrant", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QdrantIndex{
		client:     client,
		collection: opts.Collection,
		dimensions: opts.Dimensions,
		logger:     logger,
	}, nil
}

func (q *QdrantIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return false, models.NewServiceError("qdrant", err)
	}
	return ok, nil
}

// CreateCollection creates a cosine collection with a keyword index on title, used by replace-by-title.
func (q *QdrantIndex) CreateCollection(ctx context.Context, name string, dims int, distance Distance) error {
	if distance != DistanceCosine {
		return fmt.Errorf("unsupported distance: %s", distance)
	}
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return models.NewServiceError("qdrant", err)
	}
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "title",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return models.NewServiceError("qdrant", err)
	}
	q.logger.Info("qdrant collection created", zap.String("collection", name), zap.Int("dimensions", dims))
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if err := checkDims(points, q.dimensions); err != nil {
		return err
	}
	for start := 0; start < len(points); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(points))
		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewID(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":        p.Passage.Text,
					"title":       p.Passage.Title,
					"url":         p.Passage.SourceURL,
					"chunk_index": int64(p.Passage.ChunkIndex),
					"source_type": string(p.Passage.SourceType),
				}),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		})
		if err != nil {
			return models.NewServiceError("qdrant", err)
		}
	}
	// New points are in place before stale ones go, so a failed call never leaves a title empty.
	for _, filter := range staleFilters(points) {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelectorFilter(filter),
		})
		if err != nil {
			return models.NewServiceError("qdrant", err)
		}
	}
	q.logger.Debug("qdrant upserted points", zap.Int("points", len(points)))
	return nil
}

// staleFilters returns, per title in points, a filter selecting that title's points
// other than the ones in points.
func staleFilters(points []Point) []*qdrant.Filter {
	ids := make(map[string][]*qdrant.PointId)
	for _, p := range points {
		ids[p.Passage.Title] = append(ids[p.Passage.Title], qdrant.NewID(p.ID))
	}
	titles := titlesOf(points)
	filters := make([]*qdrant.Filter, 0, len(titles))
	for _, title := range titles {
		filters = append(filters, &qdrant.Filter{
			Must:    []*qdrant.Condition{qdrant.NewMatch("title", title)},
			MustNot: []*qdrant.Condition{qdrant.NewHasID(ids[title]...)},
		})
	}
	return filters
}

func (q *QdrantIndex) DeleteByTitle(ctx context.Context, title string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("title", title)},
		}),
	})
	if err != nil {
		return models.NewServiceError("qdrant", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), q.dimensions)
	}
	if limit <= 0 {
		return []*VectorResult{}, nil
	}
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, models.NewServiceError("qdrant", err)
	}
	results := make([]*VectorResult, 0, len(hits))
	for _, h := range hits {
		payload := h.GetPayload()
		results = append(results, &VectorResult{
			ID:    h.GetId().GetUuid(),
			Score: float64(h.GetScore()),
			Passage: models.Passage{
				Text:       payload["text"].GetStringValue(),
				Title:      payload["title"].GetStringValue(),
				SourceURL:  payload["url"].GetStringValue(),
				ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
				SourceType: models.SourceType(payload["source_type"].GetStringValue()),
			},
		})
	}
	return results, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int64, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, models.NewServiceError("qdrant", err)
	}
	return int64(n), nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
