package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores document chunk vectors in Qdrant
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	// Build gRPC dial options
	var opts []grpc.DialOption

	// Determine if TLS should be used
	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		// Use TLS with system root certificates (TLS 1.3 minimum for Qdrant Cloud)
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		// Add API Key authentication if provided (using unary interceptor)
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		// Local mode: no TLS, no authentication
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the chunk collection and its payload indexes if missing.
// An existing collection with a different vector size is an error.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:           optionalUint64(16),
			EfConstruct: optionalUint64(128),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Search filters by owner and deletes filter by document.
	for _, field := range []string{"owner_id", "document_id"} {
		_, err := r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: r.collectionName,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeInteger.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to index payload field %s: %w", field, err)
		}
	}

	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// ChunkPayload is the payload stored with each chunk vector.
type ChunkPayload struct {
	DocumentID uint   `json:"document_id"`
	OwnerID    uint   `json:"owner_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// ChunkPoint is one vector plus payload to upsert.
type ChunkPoint struct {
	ID      string
	Vector  []float32
	Payload ChunkPayload
}

// UpsertChunks inserts or replaces chunk points in one request.
func (r *QdrantRepository) UpsertChunks(ctx context.Context, chunks []ChunkPoint) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		uid, err := uuid.Parse(c.ID)
		if err != nil {
			return fmt.Errorf("invalid point ID: %w", err)
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: c.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"document_id": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Payload.DocumentID)}},
				"owner_id":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Payload.OwnerID)}},
				"filename":    {Kind: &pb.Value_StringValue{StringValue: c.Payload.Filename}},
				"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Payload.ChunkIndex)}},
				"text":        {Kind: &pb.Value_StringValue{StringValue: c.Payload.Text}},
			},
		})
	}

	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// SearchResult represents a scored chunk returned by Search.
type SearchResult struct {
	ID      string
	Score   float32
	Payload *ChunkPayload
}

// Search returns the topK chunks closest to vector among the owner's documents.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, ownerID uint) ([]SearchResult, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         matchInteger("owner_id", int64(ownerID)),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = SearchResult{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: parseChunkPayload(scored.Payload),
		}
	}
	return results, nil
}

// DeleteDocument removes every chunk of a document.
func (r *QdrantRepository) DeleteDocument(ctx context.Context, documentID uint) error {
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: matchInteger("document_id", int64(documentID)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete document points: %w", err)
	}
	return nil
}

func matchInteger(key string, value int64) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: key,
						Match: &pb.Match{
							MatchValue: &pb.Match_Integer{Integer: value},
						},
					},
				},
			},
		},
	}
}

func parseChunkPayload(payload map[string]*pb.Value) *ChunkPayload {
	if payload == nil {
		return nil
	}

	p := &ChunkPayload{}
	if v, ok := payload["document_id"]; ok {
		p.DocumentID = uint(v.GetIntegerValue())
	}
	if v, ok := payload["owner_id"]; ok {
		p.OwnerID = uint(v.GetIntegerValue())
	}
	if v, ok := payload["filename"]; ok {
		p.Filename = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["text"]; ok {
		p.Text = v.GetStringValue()
	}
	return p
}
