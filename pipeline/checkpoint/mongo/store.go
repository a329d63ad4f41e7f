// Package mongo provides a MongoDB-backed pipeline.CheckpointStore, for deployments
// that run many pipeline workers against shared durable state instead of a
// local filesystem.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"stencilacore/pipeline"
)

const (
	defaultCollection = "pipeline_checkpoints"
	defaultOpTimeout   = 5 * time.Second
)

// Options configures the Mongo-backed checkpoint store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements pipeline.CheckpointStore against a MongoDB collection, keyed by
// run ID with an upsert-on-write, last-write-wins semantics matching the
// single-writer-per-run discipline every Store implementation must honor.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

var _ pipeline.CheckpointStore = (*Store)(nil)

// NewStore constructs a Store against the given database/collection,
// creating a unique index on run_id if absent.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(idxCtx, index); err != nil {
		return nil, err
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

type checkpointDocument struct {
	RunID          string              `bson:"run_id"`
	Timestamp      time.Time           `bson:"timestamp"`
	CurrentNode    string              `bson:"current_node"`
	CompletedNodes []string            `bson:"completed_nodes"`
	NodeRetries    map[string]uint32   `bson:"node_retries"`
	ContextValues  bson.M              `bson:"context_values"`
	ContextLogs    []string            `bson:"context_logs"`
}

// Write upserts the checkpoint document for runID, so a resumed run always
// reads back the most recently committed state regardless of which process
// wrote it.
func (s *Store) Write(ctx context.Context, runID string, cp *pipeline.Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := toDocument(runID, cp)
	filter := bson.M{"run_id": runID}
	update := bson.M{"$set": doc}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Read loads the checkpoint document for runID.
func (s *Store) Read(ctx context.Context, runID string) (*pipeline.Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc checkpointDocument
	if err := s.coll.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toCheckpoint(), nil
}

func toDocument(runID string, cp *pipeline.Checkpoint) checkpointDocument {
	nodes := make([]string, len(cp.CompletedNodes))
	for i, n := range cp.CompletedNodes {
		nodes[i] = string(n)
	}
	values := make(bson.M, len(cp.Context.Values))
	for k, v := range cp.Context.Values {
		values[k] = string(v)
	}
	return checkpointDocument{
		RunID:          runID,
		Timestamp:      cp.Timestamp,
		CurrentNode:    string(cp.CurrentNode),
		CompletedNodes: nodes,
		NodeRetries:    cp.NodeRetries,
		ContextValues:  values,
		ContextLogs:    cp.Context.Logs,
	}
}

func (doc checkpointDocument) toCheckpoint() *pipeline.Checkpoint {
	nodes := make([]pipeline.StageID, len(doc.CompletedNodes))
	for i, n := range doc.CompletedNodes {
		nodes[i] = pipeline.StageID(n)
	}
	values := make(map[string]json.RawMessage, len(doc.ContextValues))
	for k, v := range doc.ContextValues {
		if s, ok := v.(string); ok {
			values[k] = json.RawMessage(s)
		}
	}
	return &pipeline.Checkpoint{
		Timestamp:      doc.Timestamp,
		CurrentNode:    pipeline.StageID(doc.CurrentNode),
		CompletedNodes: nodes,
		NodeRetries:    doc.NodeRetries,
		Context: pipeline.Snapshot{
			Values: values,
			Logs:   doc.ContextLogs,
		},
	}
}
