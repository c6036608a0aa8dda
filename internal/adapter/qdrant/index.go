// Package qdrant stores the knowledge index in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/couchcryptid/rainfall-insights/internal/domain"
	"github.com/couchcryptid/rainfall-insights/internal/knowledge"
)

// pointNamespace seeds the deterministic UUIDv5 point IDs, so re-upserting
// the corpus at startup overwrites points instead of duplicating them.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/couchcryptid/rainfall-insights/knowledge"))

// Payload keys.
const (
	keyTerm     = "term"
	keyText     = "text"
	keyPosition = "position"
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

type healthAPI interface {
	HealthCheck(ctx context.Context, in *pb.HealthCheckRequest, opts ...grpc.CallOption) (*pb.HealthCheckReply, error)
}

// Index implements knowledge.Index on a Qdrant collection with cosine distance.
type Index struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	health      healthAPI
	collection  string
}

var (
	_ knowledge.Index  = (*Index)(nil)
	_ knowledge.Pinger = (*Index)(nil)
)

// New connects to Qdrant at the given gRPC address.
func New(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		health:      pb.NewQdrantClient(conn),
		collection:  collection,
	}, nil
}

func newWithClients(points pointsAPI, collections collectionsAPI, health healthAPI, collection string) *Index {
	return &Index{points: points, collections: collections, health: health, collection: collection}
}

// Close closes the underlying gRPC connection.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// Ping checks that Qdrant answers health checks.
func (x *Index) Ping(ctx context.Context) error {
	if _, err := x.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	return nil
}

// Upsert creates the collection on first use and writes one point per entry.
func (x *Index) Upsert(ctx context.Context, entries []knowledge.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := x.ensureCollection(ctx, len(entries[0].Vector)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(e.Document.Term)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: e.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				keyTerm:     {Kind: &pb.Value_StringValue{StringValue: e.Document.Term}},
				keyText:     {Kind: &pb.Value_StringValue{StringValue: e.Document.Text}},
				keyPosition: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Position)}},
			},
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the k nearest documents by cosine similarity.
func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	matches := make([]domain.Match, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		matches = append(matches, domain.Match{
			Document: domain.KnowledgeDocument{
				Term: payload[keyTerm].GetStringValue(),
				Text: payload[keyText].GetStringValue(),
			},
			Score: float64(r.GetScore()),
		})
	}
	return matches, nil
}

func (x *Index) ensureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", x.collection, err)
	}
	return nil
}

// PointID returns the stable point ID for a corpus term.
func PointID(term string) string {
	return uuid.NewSHA1(pointNamespace, []byte(term)).String()
}
