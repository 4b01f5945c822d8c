package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/JoaoPedroMBiofy/ingestor/internal/lineage"
)

const (
	documentQuery = "MERGE (d:Document {name: $doc}) " +
		"SET d.source_file = $source, d.strategy = $strategy, d.mode = $mode, d.ingested_at = $at " +
		"MERGE (c:Collection {name: $collection}) " +
		"MERGE (d)-[:INDEXED_IN]->(c)"

	pagesQuery = "MATCH (d:Document {name: $doc}) " +
		"UNWIND $pages AS p " +
		"MERGE (pg:Page {name: p.name}) SET pg.number = p.number " +
		"MERGE (d)-[:HAS_PAGE]->(pg)"

	pageChunksQuery = "UNWIND $chunks AS ch " +
		"MATCH (pg:Page {name: ch.page_name}) " +
		"MERGE (k:Chunk {point_id: ch.point_id}) SET k.index = ch.index, k.collection = $collection " +
		"MERGE (pg)-[:HAS_CHUNK]->(k)"

	documentChunksQuery = "MATCH (d:Document {name: $doc}) " +
		"UNWIND $chunks AS ch " +
		"MERGE (k:Chunk {point_id: ch.point_id}) SET k.index = ch.index, k.collection = $collection " +
		"MERGE (d)-[:HAS_CHUNK]->(k)"

	documentsQuery = "MATCH (d:Document)-[:INDEXED_IN]->(:Collection {name: $collection}) " +
		"RETURN d.name AS name ORDER BY name"
)

// Recorder implements lineage.Recorder on Neo4j.
type Recorder struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Recorder, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Recorder{driver: driver}, nil
}

// RecordIngestion writes the whole record in one transaction.
func (r *Recorder) RecordIngestion(ctx context.Context, rec lineage.Record) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range statements(rec) {
			if _, err := tx.Run(ctx, q.cypher, q.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("record lineage for %s: %w", rec.Document, err)
	}
	return nil
}

// Documents lists document names indexed into collection.
func (r *Recorder) Documents(ctx context.Context, collection string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, documentsQuery, map[string]any{"collection": collection})
		if err != nil {
			return nil, err
		}
		var names []string
		for records.Next(ctx) {
			if name, ok := records.Record().Get("name"); ok {
				if s, ok := name.(string); ok {
					names = append(names, s)
				}
			}
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query documents in %s: %w", collection, err)
	}
	return result.([]string), nil
}

func (r *Recorder) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

type statement struct {
	cypher string
	params map[string]any
}

// statements builds the Cypher run for rec, skipping empty batches.
func statements(rec lineage.Record) []statement {
	at := rec.IngestedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	out := []statement{{
		cypher: documentQuery,
		params: map[string]any{
			"doc":        rec.Document,
			"source":     rec.SourceFile,
			"strategy":   rec.Strategy,
			"mode":       rec.Mode,
			"at":         at.Format(time.RFC3339),
			"collection": rec.Collection,
		},
	}}

	pageNames := make(map[int]string, len(rec.Pages))
	if len(rec.Pages) > 0 {
		pages := make([]any, 0, len(rec.Pages))
		for _, p := range rec.Pages {
			pageNames[p.Number] = p.Name
			pages = append(pages, map[string]any{"name": p.Name, "number": int64(p.Number)})
		}
		out = append(out, statement{
			cypher: pagesQuery,
			params: map[string]any{"doc": rec.Document, "pages": pages},
		})
	}

	var onPages, onDoc []any
	for _, c := range rec.Chunks {
		row := map[string]any{"point_id": c.PointID, "index": int64(c.Index)}
		if name, ok := pageNames[c.Page]; ok && c.Page > 0 {
			row["page_name"] = name
			onPages = append(onPages, row)
			continue
		}
		onDoc = append(onDoc, row)
	}
	if len(onPages) > 0 {
		out = append(out, statement{
			cypher: pageChunksQuery,
			params: map[string]any{"chunks": onPages, "collection": rec.Collection},
		})
	}
	if len(onDoc) > 0 {
		out = append(out, statement{
			cypher: documentChunksQuery,
			params: map[string]any{"doc": rec.Document, "chunks": onDoc, "collection": rec.Collection},
		})
	}
	return out
}

var _ lineage.Recorder = (*Recorder)(nil)
