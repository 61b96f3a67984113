package s3

import (
	"context"
	"encoding/json"
	"path"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

const artifactBucket = "artifacts"

/*
ArtifactStore persists task outputs as JSON objects so terminal result
messages can reference them by key instead of inlining large payloads.
Keys are trace-scoped: <trace_id>/<task_id>.json.
*/
type ArtifactStore struct {
	conn *Conn
}

func NewArtifactStore(conn *Conn) *ArtifactStore {
	return &ArtifactStore{conn: conn}
}

/*
SaveOutputs uploads the outputs of a completed task and returns the
object key for the result message's artifact list.
*/
func (store *ArtifactStore) SaveOutputs(ctx context.Context, traceID, taskID string, outputs map[string]any) (string, error) {
	data, err := json.Marshal(outputs)

	if err != nil {
		return "", errors.ErrExecution.WithMessagef("failed to marshal outputs: %v", err)
	}

	key := path.Join(traceID, taskID+".json")

	if err := store.conn.Put(ctx, artifactBucket, key, data, "application/json"); err != nil {
		log.Error("failed to store artifact", "key", key, "error", err)
		return "", errors.ErrTransport.WithMessagef("failed to store artifact %s: %v", key, err)
	}

	return key, nil
}

/*
GetOutputs fetches a stored artifact back as the original output map.
*/
func (store *ArtifactStore) GetOutputs(ctx context.Context, key string) (map[string]any, error) {
	data, err := store.conn.Get(ctx, artifactBucket, key)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to fetch artifact %s: %v", key, err)
	}

	var outputs map[string]any

	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, errors.ErrExecution.WithMessagef("failed to unmarshal artifact %s: %v", key, err)
	}

	return outputs, nil
}

// EnsureBucket prepares the artifact bucket at startup.
func (store *ArtifactStore) EnsureBucket(ctx context.Context) error {
	return store.conn.EnsureBucket(ctx, artifactBucket)
}
