package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store against a Neo4j server, for deployments that
// already operate one. Ids are allocated from sequence nodes so the int64
// identity contract matches the embedded backends. Traversal runs through the
// same shared BFS as the other backends, with expansion ordered by edge id,
// so client-visible ordering is identical.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4j connects to a Neo4j server and verifies connectivity. Uniqueness
// is enforced by the dedup queries themselves; no server-side constraints are
// required, so setup against a fresh database is a no-op.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4jStore) UpsertNode(ctx context.Context, n *Node) (int64, error) {
	if n.Label == "" && n.ID == 0 {
		return 0, fmt.Errorf("node label must not be empty")
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return upsertNodeTx(ctx, tx, n)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func upsertNodeTx(ctx context.Context, tx neo4j.ManagedTransaction, n *Node) (int64, error) {
	propsJSON, err := marshalProps(n.Props)
	if err != nil {
		return 0, err
	}

	if n.ID != 0 {
		result, err := tx.Run(ctx, `
			MATCH (n:Entity {id: $id})
			SET n.label = $label, n.type = $type, n.props = $props
			RETURN n.id AS id
		`, map[string]any{"id": n.ID, "label": n.Label, "type": n.Type, "props": propsJSON})
		if err != nil {
			return 0, err
		}
		if !result.Next(ctx) {
			return 0, fmt.Errorf("updating node %d: %w", n.ID, ErrNotFound)
		}
		return n.ID, nil
	}

	// Dedup path: merge props into an existing (label, type) node.
	result, err := tx.Run(ctx, `
		MATCH (n:Entity {label: $label, type: $type})
		RETURN n.id AS id, n.props AS props
	`, map[string]any{"label": n.Label, "type": n.Type})
	if err != nil {
		return 0, err
	}
	if result.Next(ctx) {
		record := result.Record()
		idValue, _ := record.Get("id")
		id := idValue.(int64)

		if len(n.Props) > 0 {
			var existing map[string]any
			if propsStr, ok := record.Values[1].(string); ok && propsStr != "" {
				if err := json.Unmarshal([]byte(propsStr), &existing); err != nil {
					return 0, fmt.Errorf("unmarshaling props: %w", err)
				}
			}
			mergedJSON, err := marshalProps(mergeProps(existing, n.Props))
			if err != nil {
				return 0, err
			}
			if _, err := tx.Run(ctx, `
				MATCH (n:Entity {id: $id}) SET n.props = $props
			`, map[string]any{"id": id, "props": mergedJSON}); err != nil {
				return 0, err
			}
		}
		return id, nil
	}

	id, err := nextID(ctx, tx, "node")
	if err != nil {
		return 0, err
	}
	_, err = tx.Run(ctx, `
		CREATE (n:Entity {id: $id, label: $label, type: $type, props: $props})
	`, map[string]any{"id": id, "label": n.Label, "type": n.Type, "props": propsJSON})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// nextID allocates a monotonic id from a named sequence node.
func nextID(ctx context.Context, tx neo4j.ManagedTransaction, name string) (int64, error) {
	result, err := tx.Run(ctx, `
		MERGE (s:Seq {name: $name})
		SET s.value = coalesce(s.value, 0) + 1
		RETURN s.value AS value
	`, map[string]any{"name": name})
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, fmt.Errorf("allocating %s id: empty result", name)
	}
	value, _ := result.Record().Get("value")
	return value.(int64), nil
}

func (s *Neo4jStore) GetNodeByLabel(ctx context.Context, label, typ string) (*Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (n:Entity {label: $label, type: $type})
			RETURN n.id AS id, n.label AS label, n.type AS type, n.props AS props
		`, map[string]any{"label": label, "type": typ})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return (*Node)(nil), nil
		}
		return recordToNode(result.Record())
	})
	if err != nil {
		return nil, err
	}
	return result.(*Node), nil
}

func recordToNode(record *neo4j.Record) (*Node, error) {
	idValue, _ := record.Get("id")
	labelValue, _ := record.Get("label")
	typeValue, _ := record.Get("type")
	propsValue, _ := record.Get("props")

	n := &Node{
		ID:    idValue.(int64),
		Label: labelValue.(string),
		Type:  typeValue.(string),
	}
	if propsStr, ok := propsValue.(string); ok && propsStr != "" {
		if err := json.Unmarshal([]byte(propsStr), &n.Props); err != nil {
			return nil, fmt.Errorf("unmarshaling props: %w", err)
		}
	}
	return n, nil
}

func (s *Neo4jStore) AddEdge(ctx context.Context, e *Edge) (int64, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return addEdgeTx(ctx, tx, e)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func addEdgeTx(ctx context.Context, tx neo4j.ManagedTransaction, e *Edge) (int64, error) {
	for _, end := range []struct {
		name string
		id   int64
	}{{"src", e.Src}, {"dst", e.Dst}} {
		result, err := tx.Run(ctx, `
			MATCH (n:Entity {id: $id}) RETURN n.id AS id
		`, map[string]any{"id": end.id})
		if err != nil {
			return 0, err
		}
		if !result.Next(ctx) {
			return 0, &ConstraintError{
				Op:  "add edge",
				Err: fmt.Errorf("%s node %d does not exist", end.name, end.id),
			}
		}
	}

	result, err := tx.Run(ctx, `
		MATCH (a:Entity {id: $src})-[r:REL {type: $type}]->(b:Entity {id: $dst})
		RETURN r.id AS id
	`, map[string]any{"src": e.Src, "dst": e.Dst, "type": e.Type})
	if err != nil {
		return 0, err
	}
	if result.Next(ctx) {
		idValue, _ := result.Record().Get("id")
		return idValue.(int64), nil
	}

	propsJSON, err := marshalProps(e.Props)
	if err != nil {
		return 0, err
	}
	id, err := nextID(ctx, tx, "edge")
	if err != nil {
		return 0, err
	}
	_, err = tx.Run(ctx, `
		MATCH (a:Entity {id: $src}), (b:Entity {id: $dst})
		CREATE (a)-[r:REL {id: $id, type: $type, props: $props}]->(b)
	`, map[string]any{"src": e.Src, "dst": e.Dst, "id": id, "type": e.Type, "props": propsJSON})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// expand enumerates outgoing edge destinations ordered by edge id, matching
// the insertion-order semantics of the embedded backends.
func (s *Neo4jStore) expand(ctx context.Context, id int64) ([]int64, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (a:Entity {id: $id})-[r:REL]->(b:Entity)
			RETURN b.id AS dst
			ORDER BY r.id
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		var dsts []int64
		for result.Next(ctx) {
			dstValue, _ := result.Record().Get("dst")
			dsts = append(dsts, dstValue.(int64))
		}
		return dsts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]int64), nil
}

func (s *Neo4jStore) resolveRef(ctx context.Context, ref NodeRef) (int64, error) {
	if ref.byID {
		n, err := s.getNode(ctx, ref.id)
		if err != nil || n == nil {
			return 0, err
		}
		return ref.id, nil
	}
	n, err := s.GetNodeByLabel(ctx, ref.label, ref.typ)
	if err != nil || n == nil {
		return 0, err
	}
	return n.ID, nil
}

func (s *Neo4jStore) getNode(ctx context.Context, id int64) (*Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (n:Entity {id: $id})
			RETURN n.id AS id, n.label AS label, n.type AS type, n.props AS props
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return (*Node)(nil), nil
		}
		return recordToNode(result.Record())
	})
	if err != nil {
		return nil, err
	}
	return result.(*Node), nil
}

func (s *Neo4jStore) Neighbors(ctx context.Context, ref NodeRef, depth, limit int) ([]Node, error) {
	normalizeBounds(&depth, &limit)

	start, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if start == 0 {
		return []Node{}, nil
	}

	ids, err := collectNeighbors(ctx, start, depth, limit, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ctx, ids)
}

func (s *Neo4jStore) Path(ctx context.Context, from, to NodeRef, maxDepth int) ([]Node, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	src, err := s.resolveRef(ctx, from)
	if err != nil {
		return nil, err
	}
	dst, err := s.resolveRef(ctx, to)
	if err != nil {
		return nil, err
	}
	if src == 0 || dst == 0 {
		return []Node{}, nil
	}

	ids, err := shortestPath(ctx, src, dst, maxDepth, s.expand)
	if err != nil {
		return nil, err
	}
	return s.fetchNodes(ctx, ids)
}

func (s *Neo4jStore) fetchNodes(ctx context.Context, ids []int64) ([]Node, error) {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.getNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, nil
}

func (s *Neo4jStore) ImportFromNotes(ctx context.Context, records []SourceRecord) (Stats, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, rec := range records {
			if err := importRecordTx(ctx, tx, rec); err != nil {
				return nil, fmt.Errorf("importing note %d: %w", rec.ID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return s.Stats(ctx)
}

func importRecordTx(ctx context.Context, tx neo4j.ManagedTransaction, rec SourceRecord) error {
	noteID, err := upsertNodeTx(ctx, tx, &Node{Label: noteLabel(rec), Type: TypeNote})
	if err != nil {
		return err
	}

	if rec.Key != "" {
		keyID, err := upsertNodeTx(ctx, tx, &Node{Label: keyLabel(rec.Key), Type: TypeKey})
		if err != nil {
			return err
		}
		if _, err := addEdgeTx(ctx, tx, &Edge{Src: noteID, Dst: keyID, Type: EdgeHasKey}); err != nil {
			return err
		}
	}

	for _, tag := range rec.Tags {
		if tag == "" {
			continue
		}
		tagID, err := upsertNodeTx(ctx, tx, &Node{Label: tagLabel(tag), Type: TypeTag})
		if err != nil {
			return err
		}
		if _, err := addEdgeTx(ctx, tx, &Edge{Src: noteID, Dst: tagID, Type: EdgeHasTag}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4jStore) Stats(ctx context.Context) (Stats, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var st Stats
		for _, q := range []struct {
			cypher string
			dst    *int64
		}{
			{`MATCH (n:Entity) RETURN count(n) AS c`, &st.Nodes},
			{`MATCH ()-[r:REL]->() RETURN count(r) AS c`, &st.Edges},
		} {
			result, err := tx.Run(ctx, q.cypher, nil)
			if err != nil {
				return nil, err
			}
			if result.Next(ctx) {
				value, _ := result.Record().Get("c")
				*q.dst = value.(int64)
			}
		}
		return st, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return result.(Stats), nil
}
