/**
 * Qdrant word index for the OCR worker
 *
 * Every structured word is stored as a 2-d point at the centre of its box, so
 * nearest-neighbour search with Euclid distance answers "which words are near (x, y)".
 * Uses Qdrant's native gRPC API.
 */

package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adverant/nexus/ocr-worker/internal/layout"
)

// wordVectorSize is the dimension of a word point: box centre x and y
const wordVectorSize = 2

// Payload keys
const (
	payloadPageID = "page_id"
	payloadJobID  = "job_id"
	payloadLine   = "line"
	payloadText   = "text"
	payloadX      = "x"
	payloadY      = "y"
	payloadW      = "w"
	payloadH      = "h"
	payloadCount  = "l"
)

// QdrantClient handles word index operations
type QdrantClient struct {
	client           qdrant.PointsClient
	collectionClient qdrant.CollectionsClient
	conn             *grpc.ClientConn
	collectionName   string
}

// WordPoint is one indexed word
type WordPoint struct {
	ID     string
	PageID string
	JobID  string
	Line   int
	Word   layout.Word
}

// WordHit is a word returned by a proximity search. Distance is in pixels.
type WordHit struct {
	WordPoint
	Distance float32
}

// NewQdrantClient creates a new Qdrant client
func NewQdrantClient(address string, collectionName string) (*QdrantClient, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}

	if collectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	// Connect to Qdrant using gRPC
	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	qc := &QdrantClient{
		client:           qdrant.NewPointsClient(conn),
		collectionClient: qdrant.NewCollectionsClient(conn),
		conn:             conn,
		collectionName:   collectionName,
	}

	if err := qc.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return qc, nil
}

// ensureCollection creates the collection if it doesn't exist
func (q *QdrantClient) ensureCollection(ctx context.Context) error {
	listResp, err := q.collectionClient.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range listResp.Collections {
		if col.Name == q.collectionName {
			return nil
		}
	}

	_, err = q.collectionClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     wordVectorSize,
					Distance: qdrant.Distance_Euclid,
				},
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// UpsertWords stores the given words in one request
func (q *QdrantClient) UpsertWords(ctx context.Context, points []*WordPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if p.PageID == "" {
			return fmt.Errorf("page ID is required")
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		structs = append(structs, toPointStruct(p))
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         structs,
	})

	if err != nil {
		return fmt.Errorf("failed to upsert %d words: %w", len(points), err)
	}

	return nil
}

// NearestWords returns up to limit words of the page ordered by distance from (x, y)
func (q *QdrantClient) NearestWords(ctx context.Context, pageID string, x, y float32, limit int) ([]*WordHit, error) {
	if pageID == "" {
		return nil, fmt.Errorf("page ID is required")
	}

	if limit <= 0 {
		limit = 10
	}

	searchReq := &qdrant.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         []float32{x, y},
		Filter:         pageFilter(pageID),
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{
				Enable: true,
			},
		},
	}

	results, err := q.client.Search(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("failed to search words: %w", err)
	}

	hits := make([]*WordHit, 0, len(results.Result))
	for _, result := range results.Result {
		wp := fromPayload(result.Payload)
		if result.Id != nil {
			wp.ID = result.Id.GetUuid()
		}
		hits = append(hits, &WordHit{WordPoint: *wp, Distance: result.Score})
	}

	return hits, nil
}

// DeletePage removes every word indexed for the page
func (q *QdrantClient) DeletePage(ctx context.Context, pageID string) error {
	if pageID == "" {
		return fmt.Errorf("page ID is required")
	}

	deleteReq := &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: pageFilter(pageID),
			},
		},
	}

	if _, err := q.client.Delete(ctx, deleteReq); err != nil {
		return fmt.Errorf("failed to delete words of page %s: %w", pageID, err)
	}

	return nil
}

// GetCollectionInfo returns collection statistics
func (q *QdrantClient) GetCollectionInfo(ctx context.Context) (map[string]interface{}, error) {
	info, err := q.collectionClient.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: q.collectionName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	stats := map[string]interface{}{
		"collection_name": q.collectionName,
		"vectors_count":   info.Result.GetVectorsCount(),
		"points_count":    info.Result.GetPointsCount(),
		"indexed_vectors": info.Result.GetIndexedVectorsCount(),
		"status":          info.Result.GetStatus().String(),
	}

	return stats, nil
}

// Close closes the Qdrant client connection
func (q *QdrantClient) Close() error {
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// wordCentre is the point a word is indexed at
func wordCentre(w layout.Word) []float32 {
	return []float32{
		float32(w.X) + float32(w.W)/2,
		float32(w.Y) + float32(w.H)/2,
	}
}

func pageFilter(pageID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadPageID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: pageID},
						},
					},
				},
			},
		},
	}
}

func toPointStruct(p *WordPoint) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: wordCentre(p.Word)},
			},
		},
		Payload: toPayload(p),
	}
}

func toPayload(p *WordPoint) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadPageID: stringValue(p.PageID),
		payloadJobID:  stringValue(p.JobID),
		payloadLine:   intValue(p.Line),
		payloadText:   stringValue(p.Word.Text),
		payloadX:      intValue(p.Word.X),
		payloadY:      intValue(p.Word.Y),
		payloadW:      intValue(p.Word.W),
		payloadH:      intValue(p.Word.H),
		payloadCount:  intValue(p.Word.Count),
	}
}

func fromPayload(payload map[string]*qdrant.Value) *WordPoint {
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	num := func(k string) int {
		if v, ok := payload[k]; ok {
			switch val := v.Kind.(type) {
			case *qdrant.Value_IntegerValue:
				return int(val.IntegerValue)
			case *qdrant.Value_DoubleValue:
				return int(val.DoubleValue)
			}
		}
		return 0
	}

	return &WordPoint{
		PageID: str(payloadPageID),
		JobID:  str(payloadJobID),
		Line:   num(payloadLine),
		Word: layout.Word{
			Text:  str(payloadText),
			X:     num(payloadX),
			Y:     num(payloadY),
			W:     num(payloadW),
			H:     num(payloadH),
			Count: num(payloadCount),
		},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(n)}}
}
